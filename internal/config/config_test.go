package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blogfeed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BLOGFEED_PRISMIC_ENDPOINT", "https://spacetraveling.cdn.prismic.io/api/v2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Prismic.PageSize != 2 {
		t.Errorf("PageSize = %d, want 2", cfg.Prismic.PageSize)
	}
	if cfg.Prismic.DocumentType != "post" {
		t.Errorf("DocumentType = %q, want post", cfg.Prismic.DocumentType)
	}
	if cfg.Prismic.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", cfg.Prismic.Timeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty", cfg.Redis.Addr)
	}
	if cfg.Feed.Dedup {
		t.Error("Dedup should default to false")
	}
	if cfg.Walk.MaxPages != 500 {
		t.Errorf("MaxPages = %d, want 500", cfg.Walk.MaxPages)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
prismic:
  endpoint: https://spacetraveling.cdn.prismic.io/api/v2
  page_size: 5
  timeout: 2s
redis:
  addr: localhost:6379
server:
  port: 3000
log:
  level: debug
  pretty: true
feed:
  dedup: true
`)

	loader := NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loader.File() != path {
		t.Errorf("File() = %q, want %q", loader.File(), path)
	}
	if cfg.Prismic.PageSize != 5 || cfg.Prismic.Timeout != 2*time.Second {
		t.Errorf("Prismic = %+v", cfg.Prismic)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Server.Addr() != ":3000" {
		t.Errorf("Addr() = %q, want :3000", cfg.Server.Addr())
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if !cfg.Feed.Dedup {
		t.Error("Dedup = false, want true")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
prismic:
  endpoint: https://spacetraveling.cdn.prismic.io/api/v2
  page_size: 5
`)
	t.Setenv("BLOGFEED_PRISMIC_PAGE_SIZE", "10")
	t.Setenv("BLOGFEED_FEED_DEDUP", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Prismic.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10 from env", cfg.Prismic.PageSize)
	}
	if !cfg.Feed.Dedup {
		t.Error("Dedup = false, want true from env")
	}
}

func TestLoad_MissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for an explicit missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{
			name:    "missing endpoint",
			env:     map[string]string{},
			wantKey: "prismic.endpoint",
		},
		{
			name: "page size too large",
			env: map[string]string{
				"BLOGFEED_PRISMIC_ENDPOINT":  "https://x.cdn.prismic.io/api/v2",
				"BLOGFEED_PRISMIC_PAGE_SIZE": "500",
			},
			wantKey: "prismic.page_size",
		},
		{
			name: "bad redis address",
			env: map[string]string{
				"BLOGFEED_PRISMIC_ENDPOINT": "https://x.cdn.prismic.io/api/v2",
				"BLOGFEED_REDIS_ADDR":       "no-port",
			},
			wantKey: "redis.addr",
		},
		{
			name: "unknown log level",
			env: map[string]string{
				"BLOGFEED_PRISMIC_ENDPOINT": "https://x.cdn.prismic.io/api/v2",
				"BLOGFEED_LOG_LEVEL":        "verbose",
			},
			wantKey: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q does not name %s", err.Error(), tt.wantKey)
			}
		})
	}
}
