package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// UserHandler serves operator account management.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler builds the user handler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Create registers a new operator account.
func (h *UserHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "nombre, correo, password and rol are required"))
		return
	}

	created, err := h.users.Create(c.Request.Context(), actor, usecase.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	}, middleware.GetOrigin(c))
	if err != nil {
		var validationErr *security.PasswordValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, validationErr.Error()))
			return
		}
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrActionDenied, Status: http.StatusForbidden, Message: "role cannot create this account"},
			{Err: usecase.ErrUnknownRole, Status: http.StatusBadRequest, Message: "unknown role"},
			{Err: usecase.ErrEmailTaken, Status: http.StatusConflict, Message: "email already registered"},
		})
		return
	}

	c.JSON(http.StatusCreated, toUserSummary(created))
}

// Get returns a single operator account.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		})
		return
	}

	c.JSON(http.StatusOK, toUserSummary(user))
}

// List returns all operator accounts.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	out := make([]UserSummary, 0, len(users))
	for i := range users {
		out = append(out, toUserSummary(&users[i]))
	}
	c.JSON(http.StatusOK, out)
}

// ChangePassword replaces an account credential. The usecase enforces
// that only the owner or the master role may do this.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password_nueva is required"))
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), actor, c.Param("id"), req.NewPassword, middleware.GetOrigin(c))
	if err != nil {
		var validationErr *security.PasswordValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, validationErr.Error()))
			return
		}
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordChangeDenied, Status: http.StatusForbidden, Message: "password change denied"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
