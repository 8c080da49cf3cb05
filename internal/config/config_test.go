package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mapLookup(values map[string]string) lookupFunc {
	return func(key string) string { return values[key] }
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:    "default values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != "8080" {
					t.Errorf("Expected default ServerPort to be '8080', got '%s'", cfg.ServerPort)
				}
				if cfg.AIProvider != ProviderGemini {
					t.Errorf("Expected default AIProvider to be 'gemini', got '%s'", cfg.AIProvider)
				}
				if cfg.AITimeout != 30*time.Second {
					t.Errorf("Expected default AITimeout to be 30s, got %v", cfg.AITimeout)
				}
				if cfg.AIMaxRetries != 0 {
					t.Errorf("Expected default AIMaxRetries to be 0, got %d", cfg.AIMaxRetries)
				}
				if cfg.StorageBackend != StorageFile {
					t.Errorf("Expected default StorageBackend to be 'file', got '%s'", cfg.StorageBackend)
				}
				if cfg.MaxUploadBytes != 10<<20 {
					t.Errorf("Expected default MaxUploadBytes to be 10 MiB, got %d", cfg.MaxUploadBytes)
				}
				if cfg.SessionTTL != 720*time.Hour {
					t.Errorf("Expected default SessionTTL to be 720h, got %v", cfg.SessionTTL)
				}
				if cfg.EnableHSTS {
					t.Error("Expected default EnableHSTS to be false")
				}
			},
		},
		{
			name: "gemini key selected by provider",
			envVars: map[string]string{
				"GEMINI_API_KEY": "gem-key",
				"OPENAI_API_KEY": "sk-key",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.AIAPIKey != "gem-key" {
					t.Errorf("Expected AIAPIKey to be 'gem-key', got '%s'", cfg.AIAPIKey)
				}
			},
		},
		{
			name: "openai provider",
			envVars: map[string]string{
				"AI_PROVIDER":    "OpenAI",
				"OPENAI_API_KEY": "sk-key",
				"AI_TIMEOUT":     "45s",
				"AI_MAX_RETRIES": "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.AIProvider != ProviderOpenAI || cfg.AIAPIKey != "sk-key" {
					t.Errorf("Unexpected provider config: %s / %s", cfg.AIProvider, cfg.AIAPIKey)
				}
				if cfg.AITimeout != 45*time.Second || cfg.AIMaxRetries != 2 {
					t.Errorf("Unexpected AI call settings: %v / %d", cfg.AITimeout, cfg.AIMaxRetries)
				}
			},
		},
		{
			name:        "unknown provider",
			envVars:     map[string]string{"AI_PROVIDER": "claude"},
			expectError: true,
		},
		{
			name:        "postgres without DATABASE_URL",
			envVars:     map[string]string{"STORAGE_BACKEND": "postgres"},
			expectError: true,
		},
		{
			name:        "mongo without MONGO_URI",
			envVars:     map[string]string{"STORAGE_BACKEND": "mongo"},
			expectError: true,
		},
		{
			name:        "s3 without bucket",
			envVars:     map[string]string{"IMAGE_STORE": "s3"},
			expectError: true,
		},
		{
			name:        "unknown storage backend",
			envVars:     map[string]string{"STORAGE_BACKEND": "floppy"},
			expectError: true,
		},
		{
			name:        "negative retries",
			envVars:     map[string]string{"AI_MAX_RETRIES": "-1"},
			expectError: true,
		},
		{
			name: "invalid duration falls back to default",
			envVars: map[string]string{
				"AI_TIMEOUT": "soon",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.AITimeout != 30*time.Second {
					t.Errorf("Expected fallback AITimeout of 30s, got %v", cfg.AITimeout)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := load(mapLookup(tt.envVars))

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestConfig_RequireAI(t *testing.T) {
	t.Parallel()

	cfg := &Config{AIProvider: ProviderOpenAI}
	if err := cfg.RequireAI(); err == nil {
		t.Error("Expected error without API key")
	}
	cfg.AIAPIKey = "sk-test"
	if err := cfg.RequireAI(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestConfig_RequireSessionSecret(t *testing.T) {
	t.Parallel()

	cfg := &Config{SessionSecret: "too-short"}
	if err := cfg.RequireSessionSecret(); err == nil {
		t.Error("Expected error for short secret")
	}
	cfg.SessionSecret = "0123456789abcdef0123456789abcdef"
	if err := cfg.RequireSessionSecret(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestLayered_EnvironmentWinsOverFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "stylesync.yaml")
	content := "server_port: 9090\nstorage_backend: memory\nenable_hsts: true\nrate_limit: 10-S\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	file, err := readConfigFile(path)
	if err != nil {
		t.Fatalf("readConfigFile() unexpected error: %v", err)
	}

	env := mapLookup(map[string]string{"SERVER_PORT": "7070"})
	cfg, err := load(layered(env, file))
	if err != nil {
		t.Fatalf("load() unexpected error: %v", err)
	}

	if cfg.ServerPort != "7070" {
		t.Errorf("Expected environment ServerPort '7070', got '%s'", cfg.ServerPort)
	}
	if cfg.StorageBackend != StorageMemory {
		t.Errorf("Expected StorageBackend from file, got '%s'", cfg.StorageBackend)
	}
	if !cfg.EnableHSTS {
		t.Error("Expected EnableHSTS from file")
	}
	if cfg.RateLimit != "10-S" {
		t.Errorf("Expected RateLimit from file, got '%s'", cfg.RateLimit)
	}
}

func TestReadConfigFile(t *testing.T) {
	t.Parallel()

	if values, err := readConfigFile(""); err != nil || values != nil {
		t.Errorf("Expected no values for empty path, got %v, %v", values, err)
	}
	if _, err := readConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := parseConfigFile([]byte("- not\n- a map\n")); err == nil {
		t.Error("Expected error for non-map YAML")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"set to 'true'", "true", false, true},
		{"set to '1'", "1", false, true},
		{"set to 'yes'", "yes", false, true},
		{"set to 'false'", "false", true, false},
		{"not set", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			get := mapLookup(map[string]string{"TEST_BOOL_KEY": tt.value})
			if got := getEnvBool(get, "TEST_BOOL_KEY", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}
