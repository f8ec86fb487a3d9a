package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/crm-pro/internal/domain"
)

const localUser = "user"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *HandlerSet) login(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	session, err := h.auth.Login(ctx.UserContext(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return translateError(err)
	}
	return ctx.Status(http.StatusOK).JSON(session)
}

func (h *HandlerSet) logout(ctx *fiber.Ctx) error {
	if err := h.auth.Logout(ctx.UserContext(), bearerToken(ctx)); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) requireSession(ctx *fiber.Ctx) error {
	token := bearerToken(ctx)
	if token == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
	}
	user, err := h.auth.Authenticate(ctx.UserContext(), token)
	if err != nil {
		return translateError(err)
	}
	ctx.Locals(localUser, user)
	return ctx.Next()
}

func (h *HandlerSet) requireRole(roles ...domain.Role) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user := currentUser(ctx)
		if user != nil {
			for _, r := range roles {
				if user.Role == r {
					return ctx.Next()
				}
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient role")
	}
}

func currentUser(ctx *fiber.Ctx) *domain.User {
	user, _ := ctx.Locals(localUser).(*domain.User)
	return user
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
