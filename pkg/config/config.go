// Package config provides configuration loading and management for vibecast.
// It handles loading configuration from YAML files and provides default
// values for every section.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/aidan3e4/vibecast/pkg/fisheye"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters for the fisheye unwarp
	Processing struct {
		// FOV is the horizontal field of view of the cardinal views in degrees
		FOV float64 `yaml:"fov"`

		// ViewAngle is the elevation of the cardinal views in degrees
		ViewAngle float64 `yaml:"viewAngle"`

		// OutputWidth and OutputHeight size the cardinal views in pixels
		OutputWidth  int `yaml:"outputWidth"`
		OutputHeight int `yaml:"outputHeight"`

		// BelowFraction is the fisheye radius fraction included in the Below view
		BelowFraction float64 `yaml:"belowFraction"`
	} `yaml:"processing"`

	// Camera describes the fisheye camera the uploader snapshots
	Camera struct {
		// Host is the camera address, e.g. "192.168.1.20"
		Host string `yaml:"host"`

		// Username and Password authenticate the snapshot endpoint
		Username string `yaml:"username"`
		Password string `yaml:"password"`

		// TimeoutSeconds bounds a single snapshot request
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"camera"`

	// Storage holds the S3 layout
	Storage struct {
		// Region is the AWS region for all buckets
		Region string `yaml:"region"`

		// InputBucket receives raw fisheye frames
		InputBucket string `yaml:"inputBucket"`

		// OutputBucket receives unwarped views
		OutputBucket string `yaml:"outputBucket"`

		// ResultsBucket receives analysis result documents and prompts
		ResultsBucket string `yaml:"resultsBucket"`

		// PromptsPrefix is the key prefix of the versioned prompt store
		PromptsPrefix string `yaml:"promptsPrefix"`
	} `yaml:"storage"`

	// LLM selects the analysis model and its credentials
	LLM struct {
		// Model is the model identifier from the model registry
		Model string `yaml:"model"`

		// PromptName selects the prompt from the versioned prompt store
		PromptName string `yaml:"promptName"`

		// SecretName is the AWS Secrets Manager secret holding API keys;
		// empty means environment variables only
		SecretName string `yaml:"secretName"`
	} `yaml:"llm"`

	// Uploader controls the capture daemon
	Uploader struct {
		// IntervalSeconds is the time between snapshots
		IntervalSeconds int `yaml:"intervalSeconds"`

		// SessionDir is the local directory for session output
		SessionDir string `yaml:"sessionDir"`

		// HealthAddr is the listen address of the health endpoint
		HealthAddr string `yaml:"healthAddr"`
	} `yaml:"uploader"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.FOV = 90
	cfg.Processing.ViewAngle = 45
	cfg.Processing.OutputWidth = 1080
	cfg.Processing.OutputHeight = 810
	cfg.Processing.BelowFraction = 0.6

	// Set default camera parameters
	cfg.Camera.TimeoutSeconds = 10

	// Set default storage parameters
	cfg.Storage.Region = "us-east-1"
	cfg.Storage.PromptsPrefix = "prompts/"

	// Set default LLM parameters
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.PromptName = "default"

	// Set default uploader parameters
	cfg.Uploader.IntervalSeconds = 60
	cfg.Uploader.SessionDir = "sessions"
	cfg.Uploader.HealthAddr = ":8080"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate rejects parameter combinations the processing core cannot compute
// through, so configuration mistakes surface as validation errors instead of
// numeric garbage downstream.
func (c *Config) Validate() error {
	if err := c.ProcessingOptions().Validate(); err != nil {
		return fmt.Errorf("invalid processing configuration: %w", err)
	}
	if c.Uploader.IntervalSeconds <= 0 {
		return fmt.Errorf("uploader interval must be positive, got %d", c.Uploader.IntervalSeconds)
	}
	if c.Camera.TimeoutSeconds <= 0 {
		return fmt.Errorf("camera timeout must be positive, got %d", c.Camera.TimeoutSeconds)
	}
	return nil
}

// ProcessingOptions converts the processing section into fisheye options.
func (c *Config) ProcessingOptions() fisheye.Options {
	return fisheye.Options{
		FOV:           c.Processing.FOV,
		OutputWidth:   c.Processing.OutputWidth,
		OutputHeight:  c.Processing.OutputHeight,
		ViewAngle:     c.Processing.ViewAngle,
		BelowFraction: c.Processing.BelowFraction,
	}
}
