package security

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestHeadersMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(HeadersMiddleware(HeadersConfig{
		AllowedOrigins: ParseOrigins("https://cs.example.com, *"),
		HSTS:           true,
	}))
	app.Get("/api/v1/inquiries", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/inquiries", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	if got := resp.Header.Get("Strict-Transport-Security"); got == "" {
		t.Error("HSTS header missing")
	}
	csp := resp.Header.Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self' https://cs.example.com") {
		t.Errorf("CSP = %q", csp)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get("Cache-Control"); got != "" {
		t.Errorf("Cache-Control on /metrics = %q, want none", got)
	}
}

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"*", 0},
		{"", 0},
		{"https://a.example, https://b.example", 2},
		{" https://a.example ,,", 1},
	}
	for _, tt := range tests {
		if got := ParseOrigins(tt.in); len(got) != tt.want {
			t.Errorf("ParseOrigins(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
