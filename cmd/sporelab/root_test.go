package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "[storage]\ndriver = \"sqlite\"\nsqlite_path = \"" + filepath.Join(dir, "lab.db") + "\"\n" +
		"[blob]\ndriver = \"memory\"\n"
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sporelab %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestExperimentCreateThenList(t *testing.T) {
	cfg := writeTestConfig(t)

	out := runCommand(t, "--config", cfg, "experiment", "create",
		"--number", "7", "--strain", "IBCB66",
		"--owner", "0f8fad5b-d9cb-469f-a165-70867728950e",
		"--reps", "2", "--tests", "1", "--start", "2025-05-20")
	if !strings.Contains(out, "created experiment") {
		t.Fatalf("unexpected create output: %q", out)
	}

	out = runCommand(t, "--config", cfg, "experiment", "list")
	if !strings.Contains(out, "IBCB66") || !strings.Contains(out, "2025-05-20") {
		t.Fatalf("experiment missing from listing:\n%s", out)
	}
}

func TestExperimentDeleteRequiresConfirmation(t *testing.T) {
	cfg := writeTestConfig(t)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", cfg, "experiment", "delete", "some-id"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Fatalf("delete without --yes: %v", err)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out := runCommand(t, "config", "init", "--path", target)
	if !strings.Contains(out, target) {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init without --overwrite: %v", err)
	}

	out = runCommand(t, "config", "validate", "--path", target)
	if !strings.Contains(out, "is valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestGalleryBadDayRejected(t *testing.T) {
	cfg := writeTestConfig(t)
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--config", cfg, "gallery", "some-test", "--day", "9"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--day") {
		t.Fatalf("invalid day: %v", err)
	}
}
