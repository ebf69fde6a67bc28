package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/handlers"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

type fakeUserRepo struct {
	byEmail map[string]*domain.User
}

func (r *fakeUserRepo) Create(context.Context, domain.User) error { return nil }

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := r.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) List(context.Context) ([]domain.User, error) { return nil, nil }
func (r *fakeUserRepo) Delete(context.Context, string) error        { return nil }
func (r *fakeUserRepo) ApplyPatch(context.Context, string, domain.UserPatch) error {
	return nil
}
func (r *fakeUserRepo) CountByRole(context.Context, domain.Role) (int, error) { return 1, nil }
func (r *fakeUserRepo) UpdatePassword(context.Context, string, string) error  { return nil }
func (r *fakeUserRepo) RecordLoginFailure(context.Context, string, int, *time.Time) error {
	return nil
}
func (r *fakeUserRepo) RecordLoginSuccess(context.Context, string, time.Time) error { return nil }

type fakeAuditRepo struct{}

func (r *fakeAuditRepo) Insert(context.Context, domain.AuditEntry) error { return nil }
func (r *fakeAuditRepo) GetByID(context.Context, string) (*domain.AuditEntry, error) {
	return nil, repository.ErrNotFound
}
func (r *fakeAuditRepo) List(context.Context, domain.AuditFilter) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakePublisher struct{}

func (p *fakePublisher) Publish(context.Context, domain.SecurityEvent) error { return nil }
func (p *fakePublisher) Close() error                                        { return nil }

func newLoginEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8192,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	hash, err := hasher.Hash("Rn8!vex.Tulpa")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	users := &fakeUserRepo{byEmail: map[string]*domain.User{
		"maria@posta.cl": {
			ID:           "user-1",
			Name:         "Maria Soto",
			Email:        "maria@posta.cl",
			Role:         domain.RoleDoctor,
			PasswordHash: &hash,
			Active:       true,
		},
	}}

	logger := zaptest.NewLogger(t)
	audit := usecase.NewAuditService(&fakeAuditRepo{}, &fakePublisher{}, logger)
	auth, err := usecase.NewAuthService(users, hasher, audit, &fakePublisher{}, logger, 5, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	tokens, err := security.NewSessionTokenManager("clave-de-prueba", "telemedicina", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenManager: %v", err)
	}

	r := gin.New()
	r.Use(middleware.EnrichContext())
	handler := handlers.NewAuthHandler(auth, tokens)
	r.POST("/login", handler.Login)
	return r
}

func TestLoginIssuesUsableSessionToken(t *testing.T) {
	r := newLoginEngine(t)

	body, _ := json.Marshal(map[string]string{"email": "maria@posta.cl", "password": "Rn8!vex.Tulpa"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp handlers.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected token payload: %+v", resp)
	}
	if resp.User.ID != "user-1" || resp.User.Role != "medico" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}

	tokens, _ := security.NewSessionTokenManager("clave-de-prueba", "telemedicina", time.Hour)
	claims, err := tokens.Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := newLoginEngine(t)

	body, _ := json.Marshal(map[string]string{"email": "maria@posta.cl", "password": "wrong"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "trace_id") {
		t.Fatalf("error payload must carry a trace id: %s", w.Body.String())
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	r := newLoginEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte(`{"email":"maria@posta.cl"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
