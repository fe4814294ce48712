// Package config handles fable configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./fable.yaml, ~/.config/fable/config.yaml, /etc/fable/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"fable.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "fable", "config.yaml"))
	}

	paths = append(paths, "/etc/fable/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all fable configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Window     WindowConfig     `yaml:"window"`
	Generation GenerationConfig `yaml:"generation"`
	DataDir    string           `yaml:"data_dir"`
	PromptFile string           `yaml:"prompt_file"`
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // text or json
}

// ModelConfig defines the generation backend.
type ModelConfig struct {
	Name      string `yaml:"name"`
	OllamaURL string `yaml:"ollama_url"`
}

// WindowConfig defines the conversation window budget.
type WindowConfig struct {
	// MaxTokens is the token budget of the active view. Oldest turns are
	// evicted beyond this.
	MaxTokens int `yaml:"max_tokens"`
	// ResumeEntries is how many transcript entries seed the window when
	// resuming an existing story.
	ResumeEntries int `yaml:"resume_entries"`
}

// GenerationConfig defines per-request model parameters.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature"`
	// MaxResponseTokens caps the length of one generated section.
	MaxResponseTokens int `yaml:"max_response_tokens"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:      "llama3.1:8b",
			OllamaURL: "http://localhost:11434",
		},
		Window: WindowConfig{
			MaxTokens:     12000,
			ResumeEntries: 10,
		},
		Generation: GenerationConfig{
			Temperature:       0.8,
			MaxResponseTokens: 1024,
		},
		DataDir:   ".",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// TranscriptPath returns the transcript database location under DataDir.
func (c *Config) TranscriptPath() string {
	return filepath.Join(c.DataDir, "fable.db")
}

// PromptPath returns the prompt library location: PromptFile when set,
// else prompts.json under DataDir.
func (c *Config) PromptPath() string {
	if c.PromptFile != "" {
		return c.PromptFile
	}
	return filepath.Join(c.DataDir, "prompts.json")
}
