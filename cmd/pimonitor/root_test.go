package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "pimonitor dev") {
		t.Errorf("output = %q", out)
	}
}

func TestCheck_OK(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "DISK_PATH="+dir+"\n")
	cfg := writeFile(t, dir, "pimonitor.yaml", `
general:
  log_file: `+filepath.Join(dir, "pimonitor.log")+`
monitors:
  root:
    type: disk
    path: ${DISK_PATH}
actions:
  audit:
    type: log
listeners:
  root-full:
    monitor: root
    action: audit
`)

	out, err := execute(t, "check", "--config", cfg, "--env-file", filepath.Join(dir, ".env"), "--no-os-env")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "1 monitors, 1 actions, 1 listeners") {
		t.Errorf("output = %q", out)
	}
}

func TestCheck_UndefinedVariable(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "pimonitor.yaml", `
monitors:
  web:
    type: http
    url: ${PIMONITOR_TEST_UNSET_URL}
actions:
  audit:
    type: log
listeners:
  web-down:
    monitor: web
    action: audit
`)

	_, err := execute(t, "check", "--config", cfg, "--env-file", filepath.Join(dir, ".env"), "--no-os-env")
	if err == nil || !strings.Contains(err.Error(), "PIMONITOR_TEST_UNSET_URL") {
		t.Errorf("check error = %v, want undefined variable", err)
	}
}

func TestRun_RejectsArgs(t *testing.T) {
	if _, err := execute(t, "run", "extra"); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestRunMain_StartupErrorReachesStderrWithLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "pimonitor.log")
	cfg := writeFile(t, dir, "pimonitor.yaml", `
general:
  log_file: `+logPath+`
monitors:
  root:
    type: disk
actions:
  audit:
    type: log
listeners:
  l1:
    monitor: missing
    action: audit
`)

	var stderr bytes.Buffer
	code := runMain(context.Background(), []string{"check", "--config", cfg, "--env-file", filepath.Join(dir, ".env"), "--no-os-env"}, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "missing") || !strings.Contains(stderr.String(), "l1") {
		t.Errorf("stderr should name the listener and monitor, got %q", stderr.String())
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "app: startup failed") {
		t.Errorf("log file missing startup failure:\n%s", data)
	}
}

func TestRunMain_OK(t *testing.T) {
	var stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"version"}, &stderr); code != 0 {
		t.Errorf("exit code = %d, stderr = %q", code, stderr.String())
	}
}
