package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skydrive/backend/pkg/logger"
)

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		statusCode := c.Response().StatusCode()

		details := map[string]interface{}{
			"method":      c.Method(),
			"path":        c.Path(),
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"user_agent":  c.Get("User-Agent"),
			"ip":          c.IP(),
		}

		user := GetCurrentUser(c)
		if user != nil {
			if statusCode >= 400 {
				logger.ErrorWithUser(user.ID.String(), "http_request", err, details)
			} else {
				logger.InfoWithUser(user.ID.String(), "http_request", details)
			}
		} else {
			if statusCode >= 400 {
				logger.Error("http_request", err, details)
			} else {
				logger.Info("http_request", details)
			}
		}

		return err
	}
}
