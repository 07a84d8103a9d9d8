// internal/config/config.go
//
// This package handles configuration and the .scopedesk directory structure.
// Every project that runs scopedesk gets a .scopedesk/ folder created in its
// root, holding logs, traces, session snapshots, and exported documents.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ScopedeskDir is the name of the directory we create in each project
	ScopedeskDir = ".scopedesk"

	defaultModel = "gemini-2.0-flash"
)

const defaultProjectConfigYAML = `# scopedesk project configuration
version: 1

# Turn budget for the intake conversation.
timebox:
  soft_limit_turns: 10
  hard_cap_turns: 18
  hard_questions_max: 4

# Model used for extraction and the generation pipeline.
model:
  name: gemini-2.0-flash
  request_timeout_seconds: 45
  max_retries: 2

# Session snapshot for crash recovery. 0 disables it.
snapshot:
  interval_turns: 3
`

// TimeboxConfig bounds the intake conversation.
type TimeboxConfig struct {
	SoftLimitTurns   int `yaml:"soft_limit_turns"`
	HardCapTurns     int `yaml:"hard_cap_turns"`
	HardQuestionsMax int `yaml:"hard_questions_max"`
}

// ModelConfig selects the generative backend and its call discipline.
type ModelConfig struct {
	Name                  string `yaml:"name"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxRetries            int    `yaml:"max_retries"`
}

// RequestTimeout returns the per-call timeout as a duration.
func (m ModelConfig) RequestTimeout() time.Duration {
	if m.RequestTimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

// SnapshotConfig controls the optional periodic session snapshot.
type SnapshotConfig struct {
	IntervalTurns int `yaml:"interval_turns"`
}

// ProjectConfig models .scopedesk/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version"`
	Timebox  TimeboxConfig  `yaml:"timebox"`
	Model    ModelConfig    `yaml:"model"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// Config holds the runtime configuration for scopedesk.
type Config struct {
	// ProjectDir is the directory where the user ran `scopedesk` from
	ProjectDir string

	// ScopedeskProjectDir is ProjectDir/.scopedesk
	ScopedeskProjectDir string

	Project ProjectConfig
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Timebox: TimeboxConfig{
			SoftLimitTurns:   10,
			HardCapTurns:     18,
			HardQuestionsMax: 4,
		},
		Model: ModelConfig{
			Name:                  defaultModel,
			RequestTimeoutSeconds: 45,
			MaxRetries:            2,
		},
		Snapshot: SnapshotConfig{IntervalTurns: 3},
	}
}

// InitScopedeskDir creates the .scopedesk directory structure in the given
// project directory. This is called when the TUI starts up.
//
// Structure created:
// .scopedesk/
// ├── logs/      <- append-only session log
// ├── traces/    <- per-session JSONL trace files
// ├── state/     <- session snapshots for crash recovery
// └── exports/   <- rendered briefs, email drafts, slide outlines
func InitScopedeskDir(projectDir string) error {
	root := filepath.Join(projectDir, ScopedeskDir)

	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "traces"),
		filepath.Join(root, "state"),
		filepath.Join(root, "exports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a Config populated with project settings. A .env file in
// the project directory is loaded first so GEMINI_API_KEY can live there
// instead of the shell profile.
func NewConfig(projectDir string) (*Config, error) {
	// Missing .env is fine; the key may already be in the environment.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	cfg := &Config{
		ProjectDir:          projectDir,
		ScopedeskProjectDir: filepath.Join(projectDir, ScopedeskDir),
		Project:             defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p ProjectConfig) validate() error {
	tb := p.Timebox
	if tb.SoftLimitTurns <= 0 {
		return fmt.Errorf("config: timebox soft_limit_turns must be > 0")
	}
	if tb.HardCapTurns < tb.SoftLimitTurns {
		return fmt.Errorf("config: timebox hard_cap_turns %d is below soft_limit_turns %d", tb.HardCapTurns, tb.SoftLimitTurns)
	}
	if tb.HardQuestionsMax <= 0 {
		return fmt.Errorf("config: timebox hard_questions_max must be > 0")
	}
	if p.Model.Name == "" {
		return fmt.Errorf("config: model name is required")
	}
	if p.Snapshot.IntervalTurns < 0 {
		return fmt.Errorf("config: snapshot interval_turns must be >= 0")
	}
	return nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.ScopedeskProjectDir, "logs")
}

// TracesDir returns the path to the traces directory.
func (c *Config) TracesDir() string {
	return filepath.Join(c.ScopedeskProjectDir, "traces")
}

// StateDir returns the path where session snapshots are written.
func (c *Config) StateDir() string {
	return filepath.Join(c.ScopedeskProjectDir, "state")
}

// ExportsDir returns the path where rendered documents are written.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.ScopedeskProjectDir, "exports")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ScopedeskProjectDir, "config.yaml")
}

// APIKey returns the Gemini API key from the environment, if set.
func (c *Config) APIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if parsed.Version == 0 {
		parsed.Version = 1
	}
	c.Project = parsed
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}
