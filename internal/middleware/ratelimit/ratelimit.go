// Package ratelimit throttles the routes that spend LLM tokens.
package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// Limiter is a per-client token bucket. Clients are keyed by the
// X-Client-ID header when present, otherwise by IP.
type Limiter struct {
	mu         sync.RWMutex
	buckets    map[string]*bucket
	maxTokens  int
	refillRate time.Duration
	logger     *zap.Logger
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

type Config struct {
	// RequestsPerWindow is the bucket size; zero means 10.
	RequestsPerWindow int
	Window            time.Duration
	Logger            *zap.Logger
}

func New(cfg Config) *Limiter {
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	l := &Limiter{
		buckets:    make(map[string]*bucket),
		maxTokens:  cfg.RequestsPerWindow,
		refillRate: cfg.Window / time.Duration(cfg.RequestsPerWindow),
		logger:     cfg.Logger,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go l.cleanup(5 * time.Minute)
	return l
}

func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("X-Client-ID")
		if key == "" {
			key = c.IP()
		}

		if !l.Allow(key) {
			l.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(l.refillRate.Seconds())+1))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if b, ok = l.buckets[key]; !ok {
			b = &bucket{tokens: l.maxTokens, lastRefill: l.now()}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if add := int(now.Sub(b.lastRefill) / l.refillRate); add > 0 {
		b.tokens = min(l.maxTokens, b.tokens+add)
		b.lastRefill = b.lastRefill.Add(time.Duration(add) * l.refillRate)
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (l *Limiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, b := range l.buckets {
				b.mu.Lock()
				if now.Sub(b.lastRefill) > 10*time.Minute {
					delete(l.buckets, key)
				}
				b.mu.Unlock()
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
