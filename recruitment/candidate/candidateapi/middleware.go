package candidateapi

import (
	"strconv"
	"strings"

	"github.com/Abraxas-365/applyflow/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the credentials accepted by AuthMiddleware.
type AuthConfig struct {
	// APIKeyHash is a bcrypt hash of the accepted X-API-Key value.
	APIKeyHash string
	// JWTSecret verifies HS256 bearer tokens.
	JWTSecret string
}

func (c AuthConfig) Enabled() bool { return c.APIKeyHash != "" || c.JWTSecret != "" }

// AuthMiddleware accepts either an API key or a bearer token. It returns
// nil when no credential is configured.
func AuthMiddleware(cfg AuthConfig) fiber.Handler {
	if !cfg.Enabled() {
		return nil
	}
	secret := []byte(cfg.JWTSecret)

	return func(c *fiber.Ctx) error {
		if key := c.Get("X-API-Key"); key != "" {
			if cfg.APIKeyHash == "" || bcrypt.CompareHashAndPassword([]byte(cfg.APIKeyHash), []byte(key)) != nil {
				return fiber.NewError(fiber.StatusUnauthorized, "Invalid API key")
			}
			c.Locals("auth_method", "api_key")
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing authorization header")
		}

		// Extract token (format: "Bearer <token>")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || cfg.JWTSecret == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.Parse(parts[1], func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		if sub, err := token.Claims.GetSubject(); err == nil {
			c.Locals("subject", sub)
		}
		c.Locals("auth_method", "jwt")
		return c.Next()
	}
}

// GetSubject extracts the token subject from context
func GetSubject(c *fiber.Ctx) (string, bool) {
	sub, ok := c.Locals("subject").(string)
	return sub, ok
}

// RequestMetrics counts requests by matched route and final status.
func RequestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		route := c.Route().Path
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(c.Response().StatusCode())).Inc()
		return nil
	}
}
