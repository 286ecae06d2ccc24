package utils

import (
	"strings"
	"testing"
)

func TestCacheKey(t *testing.T) {
	a := CacheKey("texts", "2025-01-01", "2025-01-31", "closed")
	b := CacheKey("texts", "2025-01-01", "2025-01-31", "closed")
	if a != b {
		t.Errorf("expected stable key, got %s and %s", a, b)
	}
	if !strings.HasPrefix(a, "texts:") {
		t.Errorf("expected namespace prefix, got %s", a)
	}
	if CacheKey("texts", "ab", "c") == CacheKey("texts", "a", "bc") {
		t.Error("part boundaries must change the key")
	}
}
