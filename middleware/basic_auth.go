package middleware

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadgen/config"
)

const authRealm = "Evergreen Media Labs"

// BasicAuth protects the dashboard-facing routes with the single HTTP Basic
// user from the environment. When no credentials are configured the
// middleware passes everything through (local development). The Brevo
// webhook routes stay outside this middleware: provider callbacks cannot
// carry credentials.
func BasicAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := config.AppConfig.DashboardUser
		password := config.AppConfig.DashboardPassword
		if user == "" || password == "" {
			return c.Next()
		}

		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Basic ") {
			return unauthorized(c)
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
		if err != nil {
			return unauthorized(c)
		}

		expected := user + ":" + password
		if subtle.ConstantTimeCompare(decoded, []byte(expected)) != 1 {
			return unauthorized(c)
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx) error {
	c.Set("WWW-Authenticate", `Basic realm="`+authRealm+`"`)
	return c.SendStatus(fiber.StatusUnauthorized)
}
