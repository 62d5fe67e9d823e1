package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(version) = %d, stderr = %s", code, stderr.String())
	}
	if stdout.String() != version+"\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), version+"\n")
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--help"}, &stdout, &stderr); code != 0 {
		t.Errorf("run(--help) = %d, want 0", code)
	}
	for _, want := range []string{"Usage: peniche", "init", "--config-dir", "--no-color"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("help missing %q:\n%s", want, stderr.String())
		}
	}
}

func TestRun_NoCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("run() = %d, want 2", code)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--bogus", "ls"}, &stdout, &stderr); code != 2 {
		t.Errorf("run(--bogus) = %d, want 2", code)
	}
}

func TestRun_InitWithGlobalFlags(t *testing.T) {
	base := t.TempDir()
	t.Chdir(base)
	configDir := filepath.Join(base, "config")

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config-dir", configDir, "--no-color", "init", "demo"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("run(init) = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Initialized workspace demo") {
		t.Errorf("stdout = %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(base, "demo", "Cargo.toml")); err != nil {
		t.Errorf("descriptor not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(configDir, "peniche.log")); err != nil {
		t.Errorf("log file not written: %v", err)
	}
}
