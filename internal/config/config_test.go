package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "onnx", cfg.Model.Backend)
	assert.Equal(t, 512, cfg.Model.MaxSeqLen)
	assert.Equal(t, "https://id.who.int/icd/release/11/2022-02/mms/search", cfg.Search.URL)
	assert.Equal(t, "2022-02", cfg.Search.ReleaseID)
	assert.Equal(t, "mms", cfg.Search.Linearization)
	assert.Equal(t, "v2", cfg.Search.APIVersion)
	assert.Equal(t, "en", cfg.Search.Language)
	assert.Equal(t, 3, cfg.Search.TopN)
	assert.Equal(t, 1, cfg.Search.Parallelism)
	assert.Equal(t, "basic", cfg.Search.Normalizer)
	assert.Equal(t, 10*time.Second, cfg.Auth.Timeout)
}

func TestLoad_ExampleFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, def, cfg)
}

func TestLoadCredentials_ExampleFile(t *testing.T) {
	creds, err := LoadCredentials(filepath.Join("..", "..", "WHO_ICD_credentials.example.json"))
	require.NoError(t, err)
	assert.Equal(t, "client_credentials", creds.GrantType)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 8111
  allowed_origins: ["http://localhost:1234"]
model:
  backend: http
  sidecar_url: http://ner:8001
search:
  top_n: 5
  parallelism: 4
  normalizer: strict
  timeout: 3s
logging:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8111, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:1234"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http", cfg.Model.Backend)
	assert.Equal(t, "http://ner:8001", cfg.Model.SidecarURL)
	assert.Equal(t, 5, cfg.Search.TopN)
	assert.Equal(t, 4, cfg.Search.Parallelism)
	assert.Equal(t, "strict", cfg.Search.Normalizer)
	assert.Equal(t, 3*time.Second, cfg.Search.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched sections still get defaults
	assert.Equal(t, "2022-02", cfg.Search.ReleaseID)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown backend", "model:\n  backend: tensorflow\n"},
		{"http backend without url", "model:\n  backend: http\n"},
		{"unknown normalizer", "search:\n  normalizer: fancy\n"},
		{"unknown log format", "logging:\n  format: xml\n"},
		{"malformed yaml", "server: [port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadCredentials(t *testing.T) {
	path := writeFile(t, "creds.json", `{
		"client_id": "id",
		"client_secret": "secret",
		"scope": "icdapi_access",
		"grant_type": "client_credentials",
		"token_endpoint": "https://icdaccessmanagement.who.int/connect/token"
	}`)

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "id", creds.ClientID)
	assert.Equal(t, "secret", creds.ClientSecret)
	assert.Equal(t, "icdapi_access", creds.Scope)
	assert.Equal(t, "client_credentials", creds.GrantType)
	assert.Equal(t, "https://icdaccessmanagement.who.int/connect/token", creds.TokenEndpoint)
}

func TestLoadCredentials_MissingFields(t *testing.T) {
	path := writeFile(t, "creds.json", `{"client_id": "id", "scope": "icdapi_access"}`)

	_, err := LoadCredentials(path)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Message, "client_secret")
	assert.Contains(t, cfgErr.Message, "grant_type")
	assert.Contains(t, cfgErr.Message, "token_endpoint")
	assert.NotContains(t, cfgErr.Message, "client_id")
}

func TestLoadCredentials_Malformed(t *testing.T) {
	_, err := LoadCredentials(writeFile(t, "creds.json", `{not json`))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "decode credentials", cfgErr.Message)
}
