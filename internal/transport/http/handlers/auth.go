package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// AuthHandler serves operator authentication.
type AuthHandler struct {
	auth   *usecase.AuthService
	tokens *security.SessionTokenManager
}

// NewAuthHandler builds the authentication handler.
func NewAuthHandler(auth *usecase.AuthService, tokens *security.SessionTokenManager) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens}
}

// Login validates credentials and issues a session token. Lockout and
// inactive-account refusals are distinguishable from bad credentials so
// the front desk can tell an operator why they are shut out.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, middleware.GetOrigin(c))
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account temporarily locked"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusForbidden, Message: "account is not active"},
		})
		return
	}

	signed, expiresAt, err := h.tokens.Issue(user.ID, user.Name, string(user.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "could not establish session"))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        toUserSummary(user),
	})
}
