package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer

	if err := run(context.Background(), &out, &errOut, []string{"version"}); err != nil {
		t.Fatalf("run version failed: %v", err)
	}
	if !strings.Contains(out.String(), "senseichat") {
		t.Errorf("version output missing program name: %q", out.String())
	}
	if !strings.Contains(out.String(), "go_version:") {
		t.Errorf("version output missing go_version: %q", out.String())
	}
}

func TestRun_Help(t *testing.T) {
	var out, errOut bytes.Buffer

	if err := run(context.Background(), &out, &errOut, []string{"-h"}); err != nil {
		t.Fatalf("run -h failed: %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("help output missing usage: %q", out.String())
	}
	if !strings.Contains(out.String(), "-config") {
		t.Errorf("help output missing -config flag: %q", out.String())
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"-bogus"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "-bogus") {
		t.Errorf("error should name the flag: %v", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"frobnicate"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("error should name the command: %v", err)
	}
}

func TestRun_ExplicitConfigMustExist(t *testing.T) {
	var out, errOut bytes.Buffer

	err := run(context.Background(), &out, &errOut, []string{"-config", "/nonexistent/senseichat.yaml"})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadConfig_MissingFallsBackToDefaults(t *testing.T) {
	// With no explicit path and no config in the search locations,
	// loadConfig should hand back built-in defaults rather than fail.
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		t.Error("default config has empty backend base_url")
	}
}
