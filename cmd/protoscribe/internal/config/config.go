// Package config loads the protoscribe configuration.
//
// Configuration lives in one YAML file. The default location is
// os.UserConfigDir()/protoscribe/config.yaml:
//
//	~/Library/Application Support/protoscribe/config.yaml   (macOS)
//	~/.config/protoscribe/config.yaml                       (Linux)
//	%AppData%/protoscribe/config.yaml                       (Windows)
//
// API keys may be left out of the file and supplied via OPENAI_API_KEY and
// GEMINI_API_KEY instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

const (
	appDir     = "protoscribe"
	configFile = "config.yaml"
)

// Config is the root configuration.
type Config struct {
	// Listen is the serve address, ":8080" by default.
	Listen string `yaml:"listen,omitempty"`

	// DataDir holds the conversation database and, unless S3 is configured,
	// the generated document files. Defaults next to the config file.
	DataDir string `yaml:"data_dir,omitempty"`

	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini *GeminiConfig `yaml:"gemini,omitempty"`

	Models ModelsConfig `yaml:"models,omitempty"`

	S3 *S3Config `yaml:"s3,omitempty"`
}

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`

	// UseSystemRole sends prompts with the system role instead of developer.
	// Required by most OpenAI-compatible providers.
	UseSystemRole bool `yaml:"use_system_role,omitempty"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
}

// ModelRef names one model on one backend.
type ModelRef struct {
	// Provider is "openai" or "gemini".
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
}

// ModelsConfig assigns a model to each role.
type ModelsConfig struct {
	Chat       ModelRef `yaml:"chat,omitempty"`
	Classifier ModelRef `yaml:"classifier,omitempty"`
	Document   ModelRef `yaml:"document,omitempty"`
}

// S3Config switches document file storage from the local data dir to S3.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, configFile), nil
}

// Load reads the configuration from path, or from the default location when
// path is empty. A missing default file yields a usable default config; a
// missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.applyDefaults(filepath.Dir(path))
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) applyDefaults(configDir string) {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = filepath.Join(configDir, "data")
	}
	if c.OpenAI == nil {
		c.OpenAI = &OpenAIConfig{}
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Gemini == nil {
		c.Gemini = &GeminiConfig{}
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	def := ModelRef{Provider: "openai", Name: "gpt-4o"}
	if c.Models.Chat == (ModelRef{}) {
		c.Models.Chat = def
	}
	if c.Models.Classifier == (ModelRef{}) {
		c.Models.Classifier = ModelRef{Provider: "openai", Name: "gpt-4o-mini"}
	}
	if c.Models.Document == (ModelRef{}) {
		c.Models.Document = def
	}
}
