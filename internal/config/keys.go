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
		key: "server.host", typ: kString, env: "HEIMDEX_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "HEIMDEX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "HEIMDEX_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "chroma.host", typ: kString, env: "HEIMDEX_CHROMA_HOST",
		apply:   func(cfg *Config, v any) { cfg.Chroma.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Chroma.Host },
	},
	{
		key: "chroma.port", typ: kInt, env: "HEIMDEX_CHROMA_PORT",
		apply:   func(cfg *Config, v any) { cfg.Chroma.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Chroma.Port },
	},
	{
		key: "chroma.collection", typ: kString, env: "HEIMDEX_CHROMA_COLLECTION",
		apply:   func(cfg *Config, v any) { cfg.Chroma.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Chroma.Collection },
	},
	{
		key: "ollama.base_url", typ: kString, env: "HEIMDEX_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "HEIMDEX_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "ollama.tool_model", typ: kString, env: "HEIMDEX_OLLAMA_TOOL_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ToolModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ToolModel },
	},
	{
		key: "retrieval.n_results", typ: kInt, env: "HEIMDEX_RETRIEVAL_N_RESULTS",
		apply:   func(cfg *Config, v any) { cfg.Retrieval.NResults = v.(int) },
		extract: func(cfg Config) any { return cfg.Retrieval.NResults },
	},
	{
		key: "storage.data_dir", typ: kString, env: "HEIMDEX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "HEIMDEX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
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
