package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Security  SecuritySettings  `mapstructure:"security"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Video     VideoSettings     `mapstructure:"video"`
	Backups   BackupSettings    `mapstructure:"backups"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

// AppSettings identifies the deployment. CORSAllowedOrigins lists the
// browser frontends allowed to call the API; empty disables CORS.
type AppSettings struct {
	Name               string   `mapstructure:"name"`
	Env                string   `mapstructure:"env"`
	Host               string   `mapstructure:"host"`
	Port               int      `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection used for the pending
// approval counter cache.
type RedisSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	TLSEnabled        bool          `mapstructure:"tls_enabled"`
	PendingKeyPrefix  string        `mapstructure:"pending_key_prefix"`
	PendingCounterTTL time.Duration `mapstructure:"pending_counter_ttl"`
}

// KafkaSettings configures the security event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// SecuritySettings holds the privacy and account protection knobs.
// EncryptionKey must be a base64-encoded 32-byte AES key; the service
// refuses to start without one outside development.
type SecuritySettings struct {
	EncryptionKey      string        `mapstructure:"encryption_key"`
	LookupSalt         string        `mapstructure:"lookup_salt"`
	LockoutThreshold   int           `mapstructure:"lockout_threshold"`
	LockoutDuration    time.Duration `mapstructure:"lockout_duration"`
	CIPMaxAttempts     int           `mapstructure:"cip_max_attempts"`
	SessionTokenSecret string        `mapstructure:"session_token_secret"`
	SessionTokenTTL    time.Duration `mapstructure:"session_token_ttl"`
	LoginMaxAttempts   int           `mapstructure:"login_max_attempts"`
	LoginWindow        time.Duration `mapstructure:"login_window"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// VideoSettings configures signed room tokens for teleconsultations.
type VideoSettings struct {
	RoomTokenSecret string        `mapstructure:"room_token_secret"`
	RoomTokenTTL    time.Duration `mapstructure:"room_token_ttl"`
	Audience        string        `mapstructure:"audience"`
}

// BackupSettings points at the directory holding database snapshots.
type BackupSettings struct {
	Directory string `mapstructure:"directory"`
}

type TelemetrySettings struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("TELEMED")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pending_key_prefix",
		"redis.pending_counter_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"security.encryption_key",
		"security.lookup_salt",
		"security.lockout_threshold",
		"security.lockout_duration",
		"security.cip_max_attempts",
		"security.session_token_secret",
		"security.session_token_ttl",
		"security.login_max_attempts",
		"security.login_window",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"video.room_token_secret",
		"video.room_token_ttl",
		"video.audience",
		"backups.directory",
		"telemetry.metrics_enabled",
		"telemetry.metrics_path",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.App.Env != "development" && c.Security.EncryptionKey == "" {
		return fmt.Errorf("security.encryption_key is required outside development")
	}
	if c.App.Env != "development" && c.Security.SessionTokenSecret == "" {
		return fmt.Errorf("security.session_token_secret is required outside development")
	}
	if c.Security.LockoutThreshold <= 0 {
		return fmt.Errorf("security.lockout_threshold must be positive")
	}
	if c.Security.LockoutDuration <= 0 {
		return fmt.Errorf("security.lockout_duration must be positive")
	}
	if c.Security.CIPMaxAttempts <= 0 {
		return fmt.Errorf("security.cip_max_attempts must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "telemedicina")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_allowed_origins", []string{})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "telemed")
	v.SetDefault("postgres.password", "telemed_password")
	v.SetDefault("postgres.database", "telemedicina")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pending_key_prefix", "telemed:aprobaciones_pendientes")
	v.SetDefault("redis.pending_counter_ttl", "5m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "telemed")
	v.SetDefault("kafka.async", true)

	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.lookup_salt", "telemedicina_segura_2024")
	v.SetDefault("security.lockout_threshold", 5)
	v.SetDefault("security.lockout_duration", "30m")
	v.SetDefault("security.cip_max_attempts", 10)
	v.SetDefault("security.session_token_secret", "")
	v.SetDefault("security.session_token_ttl", "8h")
	v.SetDefault("security.login_max_attempts", 20)
	v.SetDefault("security.login_window", "1m")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("video.room_token_secret", "")
	v.SetDefault("video.room_token_ttl", "2h")
	v.SetDefault("video.audience", "jitsi")

	v.SetDefault("backups.directory", "./backups")

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.metrics_path", "/metrics")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "TELEMED_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
