package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/skydrive/backend/internal/models"
	"github.com/skydrive/backend/internal/services"
	"github.com/skydrive/backend/pkg/logger"
	"github.com/skydrive/backend/pkg/utils"
)

const currentUserKey = "currentUser"

// SessionCookie is the cookie that carries the plaintext session token.
const SessionCookie = "skydrive_session"

type AuthMiddleware struct {
	Sessions *services.SessionService
}

func NewAuthMiddleware(sessions *services.SessionService) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions}
}

func CORS(frontendURL string) fiber.Handler {
	origins := frontendURL
	if strings.Contains(frontendURL, "localhost") {
		loopback := strings.Replace(frontendURL, "localhost", "127.0.0.1", 1)
		origins = frontendURL + "," + loopback
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: true,
	})
}

// LoadUser resolves the session cookie on every request. It never
// rejects: a missing, expired or unresolvable session simply leaves
// the request anonymous.
func (a *AuthMiddleware) LoadUser(c *fiber.Ctx) error {
	token := c.Cookies(SessionCookie)
	if token == "" {
		return c.Next()
	}

	user, err := a.Sessions.Resolve(c.Context(), token)
	if err != nil {
		logger.Error("session_resolve_failed", err, map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return c.Next()
	}
	if user != nil {
		c.Locals(currentUserKey, user)
	}
	return c.Next()
}

// RequireAuth guards routes that need a signed-in user. It runs after
// LoadUser and only checks the request-local user.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	if GetCurrentUser(c) == nil {
		logger.Warn("auth_required", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	user, ok := c.Locals(currentUserKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
