package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindConfig_Explicit(t *testing.T) {
	// Create a temp config file
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("backend:\n  base_url: http://example.test/api\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "senseichat.yaml")
	os.WriteFile(path, []byte("log_level: debug\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "senseichat.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "senseichat.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("backend:\n  base_url: ${SENSEI_TEST_URL}\n"), 0600)
	os.Setenv("SENSEI_TEST_URL", "http://10.0.0.5:8081/api")
	defer os.Unsetenv("SENSEI_TEST_URL")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://10.0.0.5:8081/api" {
		t.Errorf("base_url = %q, want %q", cfg.Backend.BaseURL, "http://10.0.0.5:8081/api")
	}
}

func TestLoad_KeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("log_level: warn\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Backend.BaseURL != "http://localhost:8081/api" {
		t.Errorf("base_url = %q, want default", cfg.Backend.BaseURL)
	}
	if cfg.Register.DefaultRole != "CUSTOMER" {
		t.Errorf("default_role = %q, want CUSTOMER", cfg.Register.DefaultRole)
	}
}

func TestBackendTimeouts(t *testing.T) {
	b := BackendConfig{TimeoutSeconds: 3, PromptTimeoutSeconds: 45}
	if b.Timeout() != 3*time.Second {
		t.Errorf("Timeout() = %v, want 3s", b.Timeout())
	}
	if b.PromptTimeout() != 45*time.Second {
		t.Errorf("PromptTimeout() = %v, want 45s", b.PromptTimeout())
	}

	var zero BackendConfig
	if zero.Timeout() != 8*time.Second {
		t.Errorf("zero Timeout() = %v, want 8s default", zero.Timeout())
	}
	if zero.PromptTimeout() != 2*time.Minute {
		t.Errorf("zero PromptTimeout() = %v, want 2m default", zero.PromptTimeout())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"info", false},
		{"TRACE", false},
		{"Debug", false},
		{"warning", false},
		{"error", false},
		{"loud", true},
	}
	for _, tt := range tests {
		_, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
