package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server  ServerConfig
	Sheets  SheetsConfig
	OpenAI  OpenAIConfig
	Cache   CacheConfig
	Storage StorageConfig
	Log     LogConfig
	Debug   DebugConfig
	Leads   LeadsConfig
}

type ServerConfig struct {
	Port int
}

type SheetsConfig struct {
	BaseURL string
	Token   string
	Timeout string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout string
}

type CacheConfig struct {
	MemoryTTL     string
	PersistentTTL string
	MemorySize    int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type DebugConfig struct {
	RingSize int
}

type LeadsConfig struct {
	PollInterval string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Sheets: SheetsConfig{
			Timeout: "5s",
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o-mini",
			Timeout: "15s",
		},
		Cache: CacheConfig{
			MemoryTTL:     "5m",
			PersistentTTL: "1h",
			MemorySize:    256,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Debug: DebugConfig{
			RingSize: 100,
		},
		Leads: LeadsConfig{
			PollInterval: "15s",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.heysheets.app) and
// secrets fall back to macOS Keychain. On Linux the backend is a JSON file
// at $XDG_CONFIG_HOME/heysheets/config.json and secrets live in a
// permission-restricted secrets file under $XDG_DATA_HOME.
//
// Environment variables (HEYSHEETS_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets absent from backend and environment fall back to the
	// platform secret store.
	if cfg.OpenAI.APIKey == "" {
		if key, err := kc.Get(keychainService, "openai_api_key"); err == nil && key != "" {
			cfg.OpenAI.APIKey = strings.TrimSpace(key)
		}
	}
	if cfg.Sheets.Token == "" {
		if token, err := kc.Get(keychainService, "sheets_token"); err == nil && token != "" {
			cfg.Sheets.Token = strings.TrimSpace(token)
		}
	}

	if cfg.OpenAI.APIKey == "" {
		msg := "missing required config: OpenAI API key. " +
			"Set it via environment variable HEYSHEETS_OPENAI_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}
	if cfg.Sheets.BaseURL == "" {
		return Config{}, fmt.Errorf("missing required config: sheet source base URL. " +
			"Set it via environment variable HEYSHEETS_SHEETS_BASE_URL or config key sheets.base_url")
	}

	return cfg, nil
}
