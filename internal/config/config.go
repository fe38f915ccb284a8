// internal/config/config.go
//
// This package builds the single configuration value a generation run uses.
// Toggles come from the environment (optionally seeded from a .env file),
// style guidance comes from the settings file passed on the command line.
// The result is constructed once in main and never mutated afterwards.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by WORLDFORGE_BACKEND.
const (
	BackendHosted     = "hosted"
	BackendSelfHosted = "selfhosted"
)

// DefaultOutputDir is the output root used when WORLDFORGE_OUTPUT_DIR is unset.
const DefaultOutputDir = "worldforge_output"

// Env holds every environment-driven toggle.
type Env struct {
	Backend       string        `env:"WORLDFORGE_BACKEND" envDefault:"hosted"`
	Images        bool          `env:"WORLDFORGE_IMAGES" envDefault:"false"`
	Debug         bool          `env:"WORLDFORGE_DEBUG" envDefault:"false"`
	OutputDir     string        `env:"WORLDFORGE_OUTPUT_DIR" envDefault:"worldforge_output"`
	CallDelay     time.Duration `env:"WORLDFORGE_CALL_DELAY" envDefault:"1s"`
	RegionTimeout time.Duration `env:"WORLDFORGE_REGION_TIMEOUT" envDefault:"0s"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"WORLDFORGE_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIImageModel string `env:"WORLDFORGE_OPENAI_IMAGE_MODEL" envDefault:"dall-e-3"`
	OpenAIBaseURL    string `env:"WORLDFORGE_OPENAI_BASE_URL"`

	OllamaHost       string `env:"WORLDFORGE_OLLAMA_HOST" envDefault:"http://localhost:11434"`
	OllamaModel      string `env:"WORLDFORGE_OLLAMA_MODEL" envDefault:"llama3.1"`
	Automatic1111URL string `env:"WORLDFORGE_A1111_URL" envDefault:"http://localhost:7860"`

	OTelEndpoint string `env:"WORLDFORGE_OTEL_ENDPOINT"`
}

// Settings carries the style guidance read from the settings file.
type Settings struct {
	VisualStyle  string `json:"visual_style" yaml:"visual_style"`
	WritingStyle string `json:"writing_style" yaml:"writing_style"`
	CoverStyle   string `json:"cover_style" yaml:"cover_style"`
}

// Inputs names the three positional command-line files.
type Inputs struct {
	ContextPath  string
	MapPath      string
	SettingsPath string
}

// Config is the immutable run configuration. It is built once by Load and
// shared read-only with every component.
type Config struct {
	Inputs   Inputs
	Settings Settings
	Env      Env
}

// LoadEnv seeds the process environment from any existing dotenv files and
// parses the recognized variables. Variables already present in the
// environment win over dotenv values.
func LoadEnv(dotenvFiles ...string) (Env, error) {
	for _, file := range dotenvFiles {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Env{}, fmt.Errorf("config: stat %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return Env{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	var parsed Env
	if err := env.Parse(&parsed); err != nil {
		return Env{}, fmt.Errorf("config: parse env: %w", err)
	}
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return Env{}, fmt.Errorf("config: %w", err)
	}
	return parsed, nil
}

// Load verifies the input files, parses settings and returns the final
// configuration. Any error here is an input error: fatal before network calls.
func Load(inputs Inputs, environment Env) (*Config, error) {
	inputs.ContextPath = strings.TrimSpace(inputs.ContextPath)
	inputs.MapPath = strings.TrimSpace(inputs.MapPath)
	inputs.SettingsPath = strings.TrimSpace(inputs.SettingsPath)
	for label, path := range map[string]string{
		"context file":  inputs.ContextPath,
		"map image":     inputs.MapPath,
		"settings file": inputs.SettingsPath,
	} {
		if err := checkReadable(path); err != nil {
			return nil, fmt.Errorf("config: %s: %w", label, err)
		}
	}
	settings, err := LoadSettings(inputs.SettingsPath)
	if err != nil {
		return nil, err
	}
	environment.normalize()
	if err := environment.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &Config{
		Inputs:   inputs,
		Settings: settings,
		Env:      environment,
	}, nil
}

// LoadSettings parses a settings file. Files ending in .yaml or .yml are read
// as YAML, everything else must be a JSON object.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read settings %s: %w", path, err)
	}
	var parsed Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Settings{}, fmt.Errorf("config: parse settings %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &parsed); err != nil {
			return Settings{}, fmt.Errorf("config: parse settings %s: %w", path, err)
		}
	}
	parsed.normalize()
	return parsed, nil
}

// Backend returns the selected content backend name.
func (c *Config) Backend() string {
	return c.Env.Backend
}

// ImagesEnabled reports whether the illustration phase runs.
func (c *Config) ImagesEnabled() bool {
	return c.Env.Images
}

// Debug reports whether per-region counts are forced to their minimum.
func (c *Config) Debug() bool {
	return c.Env.Debug
}

// OutputDir returns the output root for all persisted state.
func (c *Config) OutputDir() string {
	return c.Env.OutputDir
}

func (e *Env) normalize() {
	e.Backend = strings.ToLower(strings.TrimSpace(e.Backend))
	e.Backend = strings.NewReplacer("-", "", "_", "").Replace(e.Backend)
	e.OutputDir = strings.TrimSpace(e.OutputDir)
	if e.OutputDir == "" {
		e.OutputDir = DefaultOutputDir
	}
	e.OpenAIAPIKey = strings.TrimSpace(e.OpenAIAPIKey)
	e.OllamaHost = strings.TrimRight(strings.TrimSpace(e.OllamaHost), "/")
	e.Automatic1111URL = strings.TrimRight(strings.TrimSpace(e.Automatic1111URL), "/")
}

func (e Env) validate() error {
	switch e.Backend {
	case BackendHosted:
		if e.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the hosted backend")
		}
	case BackendSelfHosted:
		if e.OllamaHost == "" {
			return fmt.Errorf("WORLDFORGE_OLLAMA_HOST is required for the selfhosted backend")
		}
		if e.Images && e.Automatic1111URL == "" {
			return fmt.Errorf("WORLDFORGE_A1111_URL is required when images are enabled")
		}
	default:
		return fmt.Errorf("WORLDFORGE_BACKEND must be %q or %q, got %q", BackendHosted, BackendSelfHosted, e.Backend)
	}
	if e.CallDelay < 0 {
		return fmt.Errorf("WORLDFORGE_CALL_DELAY must not be negative")
	}
	if e.RegionTimeout < 0 {
		return fmt.Errorf("WORLDFORGE_REGION_TIMEOUT must not be negative")
	}
	return nil
}

func (s *Settings) normalize() {
	s.VisualStyle = strings.TrimSpace(s.VisualStyle)
	s.WritingStyle = strings.TrimSpace(s.WritingStyle)
	s.CoverStyle = strings.TrimSpace(s.CoverStyle)
}

func checkReadable(path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
