package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/core/ports"
)

// UserHandler owns the open sign-up endpoint. The chat-side user CRUD lives
// elsewhere; only registration matters to the auth core because it is exempt
// from the session gate.
type UserHandler struct {
	authService ports.AuthService
}

func NewUserHandler(authService ports.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email"    validate:"omitempty,email"`
}

// Register creates a new USER account.
//
// @Summary      Sign up
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "New account details"
// @Success      201   {object}  domain.Principal
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /api/users [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.ErrMalformedRequest
	}
	if err := c.Validate(&req); err != nil {
		return domain.NewError(domain.ErrCodeMalformedRequest, err.Error())
	}

	user, err := h.authService.Register(c.Request().Context(), req.Username, req.Password, req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, domain.PrincipalOf(user, false))
}
