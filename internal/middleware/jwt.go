package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/cowriepay/cowrie/internal/user"
)

// JWTAuth validates HS256 bearer tokens and resolves the subject to a known
// user before letting the request through.
func JWTAuth(secret string, users *user.Service) fiber.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		token, err := jwt.Parse(tokenStr, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return fiber.NewError(http.StatusUnauthorized, "invalid token subject")
		}
		if _, err := users.Get(c.UserContext(), sub); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "unknown user")
		}

		c.Locals("user_id", sub)
		return c.Next()
	}
}
