package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sporelab/internal/config"
)

func TestLoadMissingFileUsesDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantDB := filepath.Join(tempHome, ".local", "share", "sporelab", "sporelab.db")
	if cfg.Storage.SQLitePath != wantDB {
		t.Fatalf("unexpected sqlite path: got %q want %q", cfg.Storage.SQLitePath, wantDB)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected storage driver: %q", cfg.Storage.Driver)
	}
	if cfg.Blob.Driver != "fs" {
		t.Fatalf("unexpected blob driver: %q", cfg.Blob.Driver)
	}
	if cfg.URLs.TTLSeconds != 3600 || cfg.URLs.SafetyMarginSeconds != 30 {
		t.Fatalf("unexpected url tuning: %+v", cfg.URLs)
	}
	if cfg.Logging.Format != "text" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadExplicitFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[storage]
driver = "postgres"
postgres_dsn = "postgres://db.internal/sporelab"

[blob]
driver = "S3"
s3_bucket = "lab-photos"
s3_region = "sa-east-1"

[urls]
ttl_seconds = 300
safety_margin_seconds = 10

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.PostgresDSN != "postgres://db.internal/sporelab" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Blob.Driver != "s3" {
		t.Fatalf("driver not normalized: %q", cfg.Blob.Driver)
	}
	if cfg.Blob.S3Bucket != "lab-photos" || cfg.Blob.S3Region != "sa-east-1" {
		t.Fatalf("unexpected blob: %+v", cfg.Blob)
	}
	if cfg.URLs.TTLSeconds != 300 {
		t.Fatalf("unexpected ttl: %d", cfg.URLs.TTLSeconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown storage driver",
			body: "[storage]\ndriver = \"dynamo\"\n",
			want: "storage.driver",
		},
		{
			name: "postgres without dsn",
			body: "[storage]\ndriver = \"postgres\"\n",
			want: "postgres_dsn",
		},
		{
			name: "s3 without bucket",
			body: "[blob]\ndriver = \"s3\"\n",
			want: "s3_bucket",
		},
		{
			name: "s3 key without secret",
			body: "[blob]\ndriver = \"s3\"\ns3_bucket = \"b\"\ns3_access_key = \"k\"\n",
			want: "set together",
		},
		{
			name: "margin not below ttl",
			body: "[urls]\nttl_seconds = 30\nsafety_margin_seconds = 30\n",
			want: "safety_margin_seconds",
		},
		{
			name: "bad log level",
			body: "[logging]\nlevel = \"trace\"\n",
			want: "logging.level",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleThenLoad(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	if !exists {
		t.Fatal("sample file not found by Load")
	}
	if cfg.Storage.Driver != config.Default().Storage.Driver {
		t.Fatalf("sample changed defaults: %+v", cfg.Storage)
	}
}
