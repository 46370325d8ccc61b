package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "HEYSHEETS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "sheets.base_url", typ: kString, env: "HEYSHEETS_SHEETS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Sheets.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Sheets.BaseURL },
	},
	{
		key: "sheets.token", typ: kString, env: "HEYSHEETS_SHEETS_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Sheets.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Sheets.Token },
	},
	{
		key: "sheets.timeout", typ: kString, env: "HEYSHEETS_SHEETS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Sheets.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Sheets.Timeout },
	},
	{
		key: "openai.api_key", typ: kString, env: "HEYSHEETS_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.model", typ: kString, env: "HEYSHEETS_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.base_url", typ: kString, env: "HEYSHEETS_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.timeout", typ: kString, env: "HEYSHEETS_OPENAI_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Timeout },
	},
	{
		key: "cache.memory_ttl", typ: kString, env: "HEYSHEETS_CACHE_MEMORY_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.MemoryTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.MemoryTTL },
	},
	{
		key: "cache.persistent_ttl", typ: kString, env: "HEYSHEETS_CACHE_PERSISTENT_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.PersistentTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.PersistentTTL },
	},
	{
		key: "cache.memory_size", typ: kInt, env: "HEYSHEETS_CACHE_MEMORY_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Cache.MemorySize = v.(int) },
		extract: func(cfg Config) any { return cfg.Cache.MemorySize },
	},
	{
		key: "storage.data_dir", typ: kString, env: "HEYSHEETS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "HEYSHEETS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "debug.ring_size", typ: kInt, env: "HEYSHEETS_DEBUG_RING_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Debug.RingSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Debug.RingSize },
	},
	{
		key: "leads.poll_interval", typ: kString, env: "HEYSHEETS_LEADS_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Leads.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Leads.PollInterval },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
