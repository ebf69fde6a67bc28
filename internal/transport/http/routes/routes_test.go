package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/config"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	httproutes "github.com/henry9622/ProgramaTelemedicina/internal/transport/http/routes"
)

func newTestEngine(t *testing.T) (*gin.Engine, *security.SessionTokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := security.NewSessionTokenManager("clave-de-prueba", "telemedicina", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenManager: %v", err)
	}

	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}
	r := httproutes.Register(httproutes.Dependencies{
		Config:        cfg,
		Logger:        zaptest.NewLogger(t),
		SessionTokens: tokens,
	})
	return r, tokens
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestEngine(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r, _ := newTestEngine(t)

	for _, path := range []string{
		"/api/v1/users",
		"/api/v1/patients/CIP-2024-ABCDE1",
		"/api/v1/approvals/pending",
		"/api/v1/audit",
		"/api/v1/backups",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestOperationalRoleCannotReachAdminSurface(t *testing.T) {
	r, tokens := newTestEngine(t)

	signed, _, err := tokens.Issue("user-1", "Maria Soto", string(domain.RoleDoctor))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for _, path := range []string{
		"/api/v1/users",
		"/api/v1/approvals/pending",
		"/api/v1/audit",
		"/api/v1/backups",
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for operational role, got %d", path, w.Code)
		}
	}
}

func TestResolutionRoutesAreMasterOnly(t *testing.T) {
	r, tokens := newTestEngine(t)

	signed, _, err := tokens.Issue("user-2", "Pedro Rojas", string(domain.RoleAdmin))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/approvals/req-1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for subordinate admin, got %d", w.Code)
	}
}
