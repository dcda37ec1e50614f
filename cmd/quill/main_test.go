package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	contents := fmt.Sprintf(`[paths]
data_dir = %q
artifact_dir = %q
log_dir = %q
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "artifacts"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func (env *cliTestEnv) writeBrief(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(env.baseDir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write brief: %v", err)
	}
	return path
}

func TestAddRegistersBrief(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "launch.md", "# Launch post\n")

	out, err := env.run(t, "add", brief)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Registered brief as item #1") {
		t.Fatalf("add output = %q", out)
	}
}

func TestAddRejectsDuplicateContent(t *testing.T) {
	env := setupCLITestEnv(t)
	first := env.writeBrief(t, "a.md", "same contents\n")
	second := env.writeBrief(t, "b.md", "same contents\n")

	if _, err := env.run(t, "add", first); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, err := env.run(t, "add", second)
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("second add err = %v, want duplicate rejection", err)
	}
}

func TestAddRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "a.pdf", "binary")

	_, err := env.run(t, "add", brief)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("add err = %v, want extension rejection", err)
	}
}

func TestListShowsRegisteredItems(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "launch.md", "# Launch post\n")
	if _, err := env.run(t, "add", brief); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := env.run(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "launch.md") || !strings.Contains(out, "input") {
		t.Fatalf("list output = %q", out)
	}

	out, err = env.run(t, "list", "published")
	if err != nil {
		t.Fatalf("list published: %v", err)
	}
	if !strings.Contains(out, "No items found") {
		t.Fatalf("list published output = %q", out)
	}
}

func TestListRejectsUnknownStage(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "list", "archived")
	if err == nil || !strings.Contains(err.Error(), "unknown stage") {
		t.Fatalf("list err = %v, want unknown stage", err)
	}
}

func TestShowDisplaysItemDetail(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "launch.md", "# Launch post\n")
	if _, err := env.run(t, "add", brief); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := env.run(t, "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Item #1", "Stage:        input", "launch.md"} {
		if !strings.Contains(out, want) {
			t.Fatalf("show output = %q missing %q", out, want)
		}
	}
}

func TestShowUnknownItem(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "show", "42")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("show err = %v, want not found", err)
	}
}

func TestStatusReportsStageCounts(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "launch.md", "# Launch post\n")
	if _, err := env.run(t, "add", brief); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Daemon:", "stopped", "input", "total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output = %q missing %q", out, want)
		}
	}
}

func TestRequeueRejectsNonFailedItem(t *testing.T) {
	env := setupCLITestEnv(t)
	brief := env.writeBrief(t, "launch.md", "# Launch post\n")
	if _, err := env.run(t, "add", brief); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := env.run(t, "requeue", "1")
	if err == nil || !strings.Contains(err.Error(), "cannot be requeued") {
		t.Fatalf("requeue err = %v, want invalid transition", err)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "fresh", "config.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("config init output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	_, err = env.run(t, "config", "init", "--path", target)
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("second init err = %v, want overwrite guard", err)
	}
}

func TestConfigShowRedactsAccessToken(t *testing.T) {
	env := setupCLITestEnv(t)
	extra := fmt.Sprintf("\n[publisher]\nbase_url = %q\naccess_token = %q\n",
		"https://api.example.com", "super-secret-token")
	existing, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if err := os.WriteFile(env.configPath, append(existing, []byte(extra)...), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, env.configPath) {
		t.Fatalf("config show output missing path: %q", out)
	}
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("access token leaked in output: %q", out)
	}
	if !strings.Contains(out, "<redacted>") {
		t.Fatalf("expected redaction marker in output: %q", out)
	}
	if !strings.Contains(out, "https://api.example.com") {
		t.Fatalf("expected base_url in output: %q", out)
	}
}
