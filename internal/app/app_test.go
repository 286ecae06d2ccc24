package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicetoya86/ticket/internal/cache"
	"github.com/nicetoya86/ticket/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SQLite:   config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ticket.db")},
		Cache:    config.CacheConfig{Backend: "memory", TTLSeconds: 60},
		Pipeline: config.PipelineConfig{FieldTitle: "문의유형"},
	}
}

func TestNewWithoutVendors(t *testing.T) {
	a, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if err := a.Store.Ping(context.Background()); err != nil {
		t.Errorf("store ping: %v", err)
	}
	if _, ok := a.Cache.(*cache.Memory); !ok {
		t.Errorf("cache = %T, want *cache.Memory", a.Cache)
	}
	if a.LLM != nil {
		t.Error("LLM client built without an API key")
	}
	if a.Zendesk.Enabled() || a.Channel.Enabled() {
		t.Error("vendors enabled without credentials")
	}
	if a.Inquiries == nil || a.Ingestion == nil {
		t.Fatal("services not built")
	}
}

func TestNewNopCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "none"
	cfg.LLM.APIKey = "sk-test"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Cache.(cache.Nop); !ok {
		t.Errorf("cache = %T, want cache.Nop", a.Cache)
	}
	if a.LLM == nil {
		t.Error("LLM client missing with an API key set")
	}
}

func TestNewRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing rules file")
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	rules := []byte("rules:\n  - name: promo\n    action: drop_line\n    pattern: 'ZZ배너'\n")
	if err := os.WriteFile(path, rules, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Pipeline.RulesFile = path
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	r, ok := a.Extractor.Rules().Match("ZZ배너 확인하세요")
	if !ok || r.Name != "promo" {
		t.Errorf("matched %q (%v), want custom rule promo", r.Name, ok)
	}
}
