package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestAllow_RefillsOverTime(t *testing.T) {
	l := New(Config{RequestsPerWindow: 2, Window: time.Minute})
	defer l.Stop()

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow("b") {
		t.Error("other clients have their own bucket")
	}

	clock = clock.Add(30 * time.Second)
	if !l.Allow("a") {
		t.Error("one token should be back after half a window")
	}
	if l.Allow("a") {
		t.Error("only one token should have been refilled")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(Config{RequestsPerWindow: 1, Window: time.Minute})
	defer l.Stop()

	app := fiber.New()
	app.Get("/analyze", l.Middleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/analyze", nil)
	req.Header.Set("X-Client-ID", "dashboard")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/analyze", nil)
	req.Header.Set("X-Client-ID", "dashboard")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get(fiber.HeaderRetryAfter) == "" {
		t.Error("expected a Retry-After header")
	}
}
