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
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.base_url", typ: kString, env: "SOLACE_SERVER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.BaseURL },
	},
	{
		key: "server.port", typ: kInt, env: "SOLACE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SOLACE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "audio.sample_rate", typ: kInt, env: "SOLACE_AUDIO_SAMPLE_RATE",
		apply:   func(cfg *Config, v any) { cfg.Audio.SampleRate = v.(int) },
		extract: func(cfg Config) any { return cfg.Audio.SampleRate },
	},
	{
		key: "audio.bins", typ: kInt, env: "SOLACE_AUDIO_BINS",
		apply:   func(cfg *Config, v any) { cfg.Audio.Bins = v.(int) },
		extract: func(cfg Config) any { return cfg.Audio.Bins },
	},
	{
		key: "audio.transcriber", typ: kString, env: "SOLACE_AUDIO_TRANSCRIBER",
		apply:   func(cfg *Config, v any) { cfg.Audio.Transcriber = v.(string) },
		extract: func(cfg Config) any { return cfg.Audio.Transcriber },
	},
	{
		key: "audio.transcriber_url", typ: kString, env: "SOLACE_AUDIO_TRANSCRIBER_URL",
		apply:   func(cfg *Config, v any) { cfg.Audio.TranscriberURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Audio.TranscriberURL },
	},
	{
		key: "log.level", typ: kString, env: "SOLACE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
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
