package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"WORLDFORGE_BACKEND", "WORLDFORGE_IMAGES", "WORLDFORGE_DEBUG", "WORLDFORGE_OUTPUT_DIR",
		"WORLDFORGE_CALL_DELAY", "WORLDFORGE_REGION_TIMEOUT", "OPENAI_API_KEY",
		"WORLDFORGE_OLLAMA_HOST", "WORLDFORGE_A1111_URL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	parsed, err := LoadEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if parsed.Backend != BackendHosted {
		t.Fatalf("backend = %q, want hosted", parsed.Backend)
	}
	if parsed.Images || parsed.Debug {
		t.Fatalf("images/debug should default to false: %+v", parsed)
	}
	if parsed.CallDelay != time.Second {
		t.Fatalf("call delay = %s, want 1s", parsed.CallDelay)
	}
	if parsed.RegionTimeout != 0 {
		t.Fatalf("region timeout = %s, want disabled", parsed.RegionTimeout)
	}
	if parsed.OutputDir != DefaultOutputDir {
		t.Fatalf("output dir = %q", parsed.OutputDir)
	}
}

func TestLoadEnvReadsToggles(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORLDFORGE_BACKEND", "Self-Hosted")
	t.Setenv("WORLDFORGE_IMAGES", "true")
	t.Setenv("WORLDFORGE_DEBUG", "true")
	t.Setenv("WORLDFORGE_CALL_DELAY", "250ms")
	parsed, err := LoadEnv()
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if parsed.Backend != BackendSelfHosted {
		t.Fatalf("backend = %q, want selfhosted", parsed.Backend)
	}
	if !parsed.Images || !parsed.Debug {
		t.Fatalf("toggles not parsed: %+v", parsed)
	}
	if parsed.CallDelay != 250*time.Millisecond {
		t.Fatalf("call delay = %s", parsed.CallDelay)
	}
}

func TestLoadEnvReadsDotenvWithoutOverriding(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dotenv := writeFile(t, dir, ".env", "OPENAI_API_KEY=from-file\nWORLDFORGE_DEBUG=true\n")
	t.Setenv("WORLDFORGE_DEBUG", "false")
	parsed, err := LoadEnv(dotenv, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if parsed.OpenAIAPIKey != "from-file" {
		t.Fatalf("api key = %q, want from-file", parsed.OpenAIAPIKey)
	}
	if parsed.Debug {
		t.Fatalf("process environment should win over dotenv")
	}
}

func TestLoadEnvRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORLDFORGE_BACKEND", "cloud")
	if _, err := LoadEnv(); err == nil || !strings.Contains(err.Error(), "WORLDFORGE_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestLoadEnvHostedRequiresKey(t *testing.T) {
	clearEnv(t)
	if _, err := LoadEnv(); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestLoadParsesJSONSettings(t *testing.T) {
	dir := t.TempDir()
	inputs := Inputs{
		ContextPath:  writeFile(t, dir, "context.txt", "A drowned coast."),
		MapPath:      writeFile(t, dir, "map.jpg", "jpeg"),
		SettingsPath: writeFile(t, dir, "settings.json", `{"visual_style":" ink wash ","writing_style":"terse","cover_style":"woodcut","extra":1}`),
	}
	cfg, err := Load(inputs, Env{Backend: BackendSelfHosted, OllamaHost: "http://ollama:11434"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settings.VisualStyle != "ink wash" || cfg.Settings.WritingStyle != "terse" || cfg.Settings.CoverStyle != "woodcut" {
		t.Fatalf("unexpected settings: %+v", cfg.Settings)
	}
	if cfg.OutputDir() != DefaultOutputDir {
		t.Fatalf("output dir = %q", cfg.OutputDir())
	}
}

func TestLoadParsesYAMLSettings(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.yaml", "visual_style: oil\nwriting_style: lyrical\n")
	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.VisualStyle != "oil" || settings.WritingStyle != "lyrical" || settings.CoverStyle != "" {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}

func TestLoadRejectsMalformedSettings(t *testing.T) {
	dir := t.TempDir()
	inputs := Inputs{
		ContextPath:  writeFile(t, dir, "context.txt", "x"),
		MapPath:      writeFile(t, dir, "map.jpg", "x"),
		SettingsPath: writeFile(t, dir, "settings.json", `{"visual_style": `),
	}
	if _, err := Load(inputs, Env{Backend: BackendSelfHosted, OllamaHost: "http://x"}); err == nil {
		t.Fatalf("expected malformed settings error")
	}
}

func TestLoadRejectsMissingInputs(t *testing.T) {
	dir := t.TempDir()
	inputs := Inputs{
		ContextPath:  filepath.Join(dir, "missing.txt"),
		MapPath:      writeFile(t, dir, "map.jpg", "x"),
		SettingsPath: writeFile(t, dir, "settings.json", `{}`),
	}
	_, err := Load(inputs, Env{Backend: BackendSelfHosted, OllamaHost: "http://x"})
	if err == nil || !strings.Contains(err.Error(), "context file") {
		t.Fatalf("expected context file error, got %v", err)
	}
}
