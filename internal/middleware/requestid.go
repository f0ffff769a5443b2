package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a stable identifier and echoes it back on
// the response, so webhook deliveries can be correlated with provider logs.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Locals(requestIDHeader, reqID)
		c.Set(requestIDHeader, reqID)

		return c.Next()
	}
}
