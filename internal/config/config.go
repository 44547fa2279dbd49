// Package config loads the service configuration and the ICD API credentials.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	Auth    AuthConfig    `yaml:"auth"`
	Search  SearchConfig  `yaml:"search"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Timeouts       TimeoutConfig `yaml:"timeouts"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type TimeoutConfig struct {
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
	Idle  time.Duration `yaml:"idle"`
}

// ModelConfig selects and configures the NER backend.
type ModelConfig struct {
	Backend    string        `yaml:"backend"` // "onnx" or "http"
	Path       string        `yaml:"path"`
	OrtLibrary string        `yaml:"ort_library"`
	MaxSeqLen  int           `yaml:"max_seq_len"`
	SidecarURL string        `yaml:"sidecar_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// SearchConfig configures the ICD-11 terminology search client.
type SearchConfig struct {
	URL           string        `yaml:"url"`
	ReleaseID     string        `yaml:"release_id"`
	Linearization string        `yaml:"linearization"`
	APIVersion    string        `yaml:"api_version"`
	Language      string        `yaml:"language"`
	TopN          int           `yaml:"top_n"`
	Timeout       time.Duration `yaml:"timeout"`
	Parallelism   int           `yaml:"parallelism"`
	Normalizer    string        `yaml:"normalizer"` // "basic" or "strict"
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Load reads the YAML config at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Path: path, Message: "read config", Cause: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Path: path, Message: "parse config", Cause: err}
		}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Message: "invalid config", Cause: err}
	}
	return cfg, nil
}

// ApplyDefaults populates zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.Timeouts.Read == 0 {
		c.Server.Timeouts.Read = 30 * time.Second
	}
	if c.Server.Timeouts.Write == 0 {
		c.Server.Timeouts.Write = 60 * time.Second
	}
	if c.Server.Timeouts.Idle == 0 {
		c.Server.Timeouts.Idle = 120 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Model.Backend == "" {
		c.Model.Backend = "onnx"
	}
	if c.Model.Path == "" {
		c.Model.Path = "./ner_model"
	}
	if c.Model.MaxSeqLen == 0 {
		c.Model.MaxSeqLen = 512
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = 10 * time.Second
	}

	if c.Auth.Timeout == 0 {
		c.Auth.Timeout = 10 * time.Second
	}

	if c.Search.URL == "" {
		c.Search.URL = "https://id.who.int/icd/release/11/2022-02/mms/search"
	}
	if c.Search.ReleaseID == "" {
		c.Search.ReleaseID = "2022-02"
	}
	if c.Search.Linearization == "" {
		c.Search.Linearization = "mms"
	}
	if c.Search.APIVersion == "" {
		c.Search.APIVersion = "v2"
	}
	if c.Search.Language == "" {
		c.Search.Language = "en"
	}
	if c.Search.TopN <= 0 {
		c.Search.TopN = 3
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 10 * time.Second
	}
	if c.Search.Parallelism <= 0 {
		c.Search.Parallelism = 1
	}
	if c.Search.Normalizer == "" {
		c.Search.Normalizer = "basic"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case "onnx":
	case "http":
		if c.Model.SidecarURL == "" {
			return errors.New("model.sidecar_url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown model.backend %q", c.Model.Backend)
	}
	switch c.Search.Normalizer {
	case "basic", "strict":
	default:
		return fmt.Errorf("unknown search.normalizer %q", c.Search.Normalizer)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Credentials holds the WHO ICD API client credentials.
type Credentials struct {
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
	Scope         string `json:"scope"`
	GrantType     string `json:"grant_type"`
	TokenEndpoint string `json:"token_endpoint"`
}

// LoadCredentials reads the credentials JSON file. All fields are required.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Message: "read credentials", Cause: err}
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, &ConfigError{Path: path, Message: "decode credentials", Cause: err}
	}
	if missing := creds.missingFields(); len(missing) > 0 {
		return nil, &ConfigError{
			Path:    path,
			Message: fmt.Sprintf("missing credential fields: %s", strings.Join(missing, ", ")),
		}
	}
	return &creds, nil
}

func (c *Credentials) missingFields() []string {
	var missing []string
	fields := []struct {
		name  string
		value string
	}{
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"scope", c.Scope},
		{"grant_type", c.GrantType},
		{"token_endpoint", c.TokenEndpoint},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ConfigError reports a malformed or missing configuration or credentials file.
type ConfigError struct {
	Path    string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}
