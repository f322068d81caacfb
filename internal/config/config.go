package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/on62/cairo-board/internal/uci"
)

type AppConfig struct {
	EnginePath string

	ReadyTimeoutMs int
	ReadRetryMax   int

	EngineThreads    int
	EngineHashMB     int
	EngineSkillLevel int
	EnginePonder     bool

	EngineOptionsFile string
	ExtraOptions      []uci.OptionValue

	TimeControlMs int

	RedisURL    string
	DatabaseURL string
}

func Load() (*AppConfig, error) {
	opt := uci.DefaultEngineOptions()
	cfg := &AppConfig{
		EnginePath:       "/usr/bin/stockfish",
		ReadyTimeoutMs:   3000,
		ReadRetryMax:     5,
		EngineThreads:    opt.Threads,
		EngineHashMB:     opt.HashMB,
		EngineSkillLevel: opt.SkillLevel,
		EnginePonder:     opt.Ponder,
		TimeControlMs:    300_000,
	}

	if v := strings.TrimSpace(os.Getenv("ENGINE_PATH")); v != "" {
		cfg.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("UCI_READY_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReadyTimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("UCI_READ_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReadRetryMax = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_SKILL_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EngineSkillLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_PONDER")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnginePonder = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeControlMs = n
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.EngineOptionsFile = strings.TrimSpace(os.Getenv("ENGINE_OPTIONS_FILE"))
	if cfg.EngineOptionsFile != "" {
		extra, err := loadOptionsFile(cfg.EngineOptionsFile)
		if err != nil {
			return nil, err
		}
		cfg.ExtraOptions = extra
	}

	if cfg.EnginePath == "" {
		return nil, errors.New("ENGINE_PATH is required")
	}
	return cfg, nil
}

// EngineOptions assembles the post-handshake setoption values.
func (c *AppConfig) EngineOptions() uci.EngineOptions {
	return uci.EngineOptions{
		Threads:    c.EngineThreads,
		HashMB:     c.EngineHashMB,
		SkillLevel: c.EngineSkillLevel,
		Ponder:     c.EnginePonder,
	}
}

type optionsFile struct {
	Options []uci.OptionValue `yaml:"options"`
}

// loadOptionsFile reads extra setoption pairs from a YAML file:
//
//	options:
//	  - name: MultiPV
//	    value: "3"
func loadOptionsFile(path string) ([]uci.OptionValue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine options file: %w", err)
	}
	var f optionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse engine options file: %w", err)
	}
	out := make([]uci.OptionValue, 0, len(f.Options))
	for _, ov := range f.Options {
		ov.Name = strings.TrimSpace(ov.Name)
		ov.Value = strings.TrimSpace(ov.Value)
		if ov.Name == "" {
			continue
		}
		out = append(out, ov)
	}
	return out, nil
}
