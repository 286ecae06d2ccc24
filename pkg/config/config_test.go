package config

import (
	"os"
	"path/filepath"
	"testing"
)

// chdir moves the test into dir and restores the working directory after.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("cache backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Pipeline.FieldTitle != "문의유형(고객)" {
		t.Errorf("field title = %q", cfg.Pipeline.FieldTitle)
	}
	if len(cfg.Pipeline.FieldTitleCandidates) != 3 {
		t.Errorf("field title candidates = %v", cfg.Pipeline.FieldTitleCandidates)
	}
	if cfg.RateLimit.AnalyzePerMinute != 20 {
		t.Errorf("analyze per minute = %d, want 20", cfg.RateLimit.AnalyzePerMinute)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte(`
server:
  port: 9000
cache:
  backend: none
pipeline:
  fieldTitle: 문의유형
  phraseLimit: 20
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TICKET_SERVER_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env should win over file: port = %d", cfg.Server.Port)
	}
	if cfg.Cache.Backend != "none" {
		t.Errorf("cache backend = %q, want none", cfg.Cache.Backend)
	}
	if cfg.Pipeline.FieldTitle != "문의유형" || cfg.Pipeline.PhraseLimit != 20 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TICKET_CACHE_TTLSECONDS=300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TICKET_CACHE_TTLSECONDS") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.TTLSeconds != 300 {
		t.Errorf("ttl = %d, want 300", cfg.Cache.TTLSeconds)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Cache:    CacheConfig{Backend: "memory", TTLSeconds: 60},
			Pipeline: PipelineConfig{FieldTitle: "문의유형"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "redis backend", mutate: func(c *Config) { c.Cache.Backend = "redis" }},
		{name: "unknown backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTLSeconds = -1 }, wantErr: true},
		{name: "missing field title", mutate: func(c *Config) { c.Pipeline.FieldTitle = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVendorEnabled(t *testing.T) {
	if (ZendeskConfig{Subdomain: "acme", Email: "a@b.c"}).Enabled() {
		t.Error("zendesk without token should be disabled")
	}
	if !(ZendeskConfig{Subdomain: "acme", Email: "a@b.c", APIToken: "t"}).Enabled() {
		t.Error("zendesk with credentials should be enabled")
	}
	if (ChannelTalkConfig{AccessKey: "k"}).Enabled() {
		t.Error("channel talk without secret should be disabled")
	}
	if (LLMConfig{}).Enabled() {
		t.Error("llm without key should be disabled")
	}
}
