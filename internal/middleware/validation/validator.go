// Package validation rejects malformed query parameters before they reach
// a handler.
package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Config struct {
	MaxLimit            int
	MaxParamLength      int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 500
	}
	if cfg.MaxParamLength == 0 {
		cfg.MaxParamLength = 200
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			if ct := c.Get(fiber.HeaderContentType); ct != "" && !allowedType(ct, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if msg := checkQuery(c, cfg); msg != "" {
			cfg.Logger.Debug("Rejected request",
				zap.String("path", c.Path()),
				zap.String("reason", msg),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
		}
		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, a := range allowed {
		if strings.Contains(contentType, a) {
			return true
		}
	}
	return false
}

// checkQuery returns a message describing the first invalid parameter, or
// "".
func checkQuery(c *fiber.Ctx, cfg Config) string {
	var bad string
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		if bad == "" && (len(v) > cfg.MaxParamLength || strings.ContainsRune(string(v), 0)) {
			bad = string(k) + " is too long or malformed"
		}
	})
	if bad != "" {
		return bad
	}

	var from, to time.Time
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return p.name + " must be a YYYY-MM-DD date"
		}
		*p.dst = t
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return "from must not be after to"
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > cfg.MaxLimit {
			return "limit must be between 1 and " + strconv.Itoa(cfg.MaxLimit)
		}
	}

	switch c.Query("source") {
	case "", "zendesk", "channel":
	default:
		return "source must be zendesk or channel"
	}
	return ""
}
