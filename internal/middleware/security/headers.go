// Package security sets response headers for a JSON and file-download API.
package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// AllowedOrigins may connect from browsers; "*" or empty adds nothing
	// to connect-src.
	AllowedOrigins []string
	// HSTS enables Strict-Transport-Security. Leave off behind plain HTTP.
	HSTS bool
}

// ParseOrigins splits the comma separated origin list used by the CORS
// middleware.
func ParseOrigins(list string) []string {
	var out []string
	for _, o := range strings.Split(list, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			out = append(out, o)
		}
	}
	return out
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	if len(cfg.AllowedOrigins) > 0 {
		csp += "; connect-src 'self' " + strings.Join(cfg.AllowedOrigins, " ")
	}

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Content-Security-Policy", csp)
		if cfg.HSTS {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		if strings.HasPrefix(c.Path(), "/api/") {
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		return c.Next()
	}
}
