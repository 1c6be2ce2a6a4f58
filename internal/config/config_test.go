package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir == "" {
		t.Error("expected default data dir")
	}
	if cfg.DefaultDB == "" {
		t.Error("expected default database")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if !cfg.GzipEnabled() || !cfg.MetricsEnabled() {
		t.Error("expected gzip and metrics enabled by default")
	}
	if cfg.Ingest.Delimiter != ";" {
		t.Errorf("expected ';' delimiter, got %q", cfg.Ingest.Delimiter)
	}
}

func TestLoadNonExistent(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("expected no error for nonexistent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config")
	}
	if cfg.DefaultDB != "profile.db" {
		t.Errorf("expected default db, got %s", cfg.DefaultDB)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
data_dir: /var/lib/profiles
default_db: step3.top-down.db
max_tree_depth: 3

server:
  port: 9090
  read_timeout: 5s
  gzip: false

metrics:
  enabled: false

ingest:
  delimiter: ","
`
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	configPath := filepath.Join(tmpDir, "proftree.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.DataDir != "/var/lib/profiles" {
		t.Errorf("expected data dir from file, got %s", cfg.DataDir)
	}
	if cfg.DefaultDB != "step3.top-down.db" {
		t.Errorf("expected default db from file, got %s", cfg.DefaultDB)
	}
	if cfg.MaxTreeDepth != 3 {
		t.Errorf("expected max tree depth 3, got %d", cfg.MaxTreeDepth)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected 5s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	// Unset fields keep their defaults
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.GzipEnabled() {
		t.Error("expected gzip disabled")
	}
	if cfg.MetricsEnabled() {
		t.Error("expected metrics disabled")
	}
	if cfg.Ingest.Delimiter != "," {
		t.Errorf("expected ',' delimiter, got %q", cfg.Ingest.Delimiter)
	}
	if cfg.Ingest.HeaderPrefix != "Function Stack;" {
		t.Errorf("expected default header prefix, got %q", cfg.Ingest.HeaderPrefix)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	configPath := filepath.Join(tmpDir, "proftree.yaml")
	if err := os.WriteFile(configPath, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvDataDir, "/srv/profiles")
	t.Setenv(EnvDefaultDB, "env.db")
	t.Setenv(EnvPort, "7070")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/srv/profiles" {
		t.Errorf("expected data dir from env, got %s", cfg.DataDir)
	}
	if cfg.DefaultDB != "env.db" {
		t.Errorf("expected db from env, got %s", cfg.DefaultDB)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("expected port 7070, got %d", cfg.Server.Port)
	}
}

func TestEnvInvalidPort(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvPort, "not-a-port")

	if _, err := Load(""); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestDotEnvFile(t *testing.T) {
	tmpDir := t.TempDir()
	chdir(t, tmpDir)
	// Register cleanup for the variable godotenv will set.
	t.Setenv(EnvDefaultDB, "")
	os.Unsetenv(EnvDefaultDB)

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(EnvDefaultDB+"=dotenv.db\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultDB != "dotenv.db" {
		t.Errorf("expected db from .env, got %s", cfg.DefaultDB)
	}
}

func TestMergeNil(t *testing.T) {
	cfg := Default()
	cfg.Merge(nil)
	if cfg.Server.Port != 8080 {
		t.Error("merge with nil should not change config")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
