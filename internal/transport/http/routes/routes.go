package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/config"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/handlers"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Users     *usecase.UserService
	Intake    *usecase.IntakeService
	Approvals *usecase.ApprovalService
	Audit     *usecase.AuditService
	Places    *usecase.PlaceService
	Backups   *usecase.BackupService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config        *config.AppConfig
	Logger        *zap.Logger
	Services      ServiceSet
	SessionTokens *security.SessionTokenManager
	RoomTokens    *security.RoomTokenIssuer
	RateLimiter   *middleware.RateLimiter
	Database      DatabaseChecker
	Cache         CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if origins := deps.Config.App.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	if deps.Config.Telemetry.MetricsEnabled {
		if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err == nil {
			r.Use(metrics.Middleware())
		} else if deps.Logger != nil {
			deps.Logger.Warn("metrics middleware disabled", zap.Error(err))
		}

		path := deps.Config.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	authRequired := middleware.RequireAuth(deps.SessionTokens)
	adminOnly := middleware.RequireRole(domain.RoleMasterAdmin, domain.RoleAdmin)
	masterOnly := middleware.RequireRole(domain.RoleMasterAdmin)

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.SessionTokens)
		api.POST("/auth/login", append(loginMiddlewares(deps), authHandler.Login)...)

		userHandler := handlers.NewUserHandler(deps.Services.Users)
		users := api.Group("/users", authRequired)
		users.POST("", adminOnly, userHandler.Create)
		users.GET("", adminOnly, userHandler.List)
		users.GET("/:id", adminOnly, userHandler.Get)
		users.POST("/:id/password", userHandler.ChangePassword)

		patientHandler := handlers.NewPatientHandler(deps.Services.Intake, deps.RoomTokens)
		patients := api.Group("/patients", authRequired)
		patients.POST("", patientHandler.Register)
		patients.POST("/find", patientHandler.Find)
		patients.GET("/:cip", patientHandler.Get)
		patients.POST("/:cip/reveal", masterOnly, patientHandler.Reveal)
		patients.POST("/:cip/room-token", patientHandler.RoomToken)

		approvalHandler := handlers.NewApprovalHandler(deps.Services.Approvals)
		approvals := api.Group("/approvals", authRequired, adminOnly)
		approvals.POST("", approvalHandler.Submit)
		approvals.GET("/mine", approvalHandler.ListMine)
		approvals.GET("/pending", masterOnly, approvalHandler.ListPending)
		approvals.GET("/pending/count", masterOnly, approvalHandler.PendingCount)
		approvals.POST("/:id/approve", masterOnly, approvalHandler.Approve)
		approvals.POST("/:id/reject", masterOnly, approvalHandler.Reject)

		auditHandler := handlers.NewAuditHandler(deps.Services.Audit)
		audit := api.Group("/audit", authRequired, adminOnly)
		audit.GET("", auditHandler.List)
		audit.GET("/verify", auditHandler.VerifyRange)
		audit.GET("/:id/verify", auditHandler.Verify)

		placeHandler := handlers.NewPlaceHandler(deps.Services.Places)
		places := api.Group("/places", authRequired)
		places.GET("", placeHandler.List)
		places.GET("/:id", placeHandler.Get)
		places.POST("", adminOnly, placeHandler.Create)

		backupHandler := handlers.NewBackupHandler(deps.Services.Backups)
		backups := api.Group("/backups", authRequired, adminOnly)
		backups.GET("", backupHandler.List)
		backups.POST("", backupHandler.Snapshot)
	}

	return r
}

func loginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.Security.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.Security.LoginWindow
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:   "auth_login_ip",
		Limit:  limit,
		Window: window,
	})}
}
