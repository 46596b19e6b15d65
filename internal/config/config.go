package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServerBaseURL string
	ServerWSURL   string

	UserID string

	RedisURL string

	StockfishPath        string
	EngineSkillLevel     int
	EngineMoveTimeMillis int
	EngineDebounceMillis int

	HandoffTTLSec int
}

// fileConfig mirrors the optional YAML overlay. Only set fields override env.
type fileConfig struct {
	ServerBaseURL string `yaml:"server_base_url"`
	ServerWSURL   string `yaml:"server_ws_url"`
	UserID        string `yaml:"user_id"`
	RedisURL      string `yaml:"redis_url"`
	Engine        struct {
		StockfishPath  string `yaml:"stockfish_path"`
		SkillLevel     *int   `yaml:"skill_level"`
		MoveTimeMillis *int   `yaml:"move_time_millis"`
		DebounceMillis *int   `yaml:"debounce_millis"`
	} `yaml:"engine"`
	HandoffTTLSec *int `yaml:"handoff_ttl_sec"`
}

// Load reads configuration from the environment, then applies the YAML file
// named by CONFIG_FILE (if any) on top.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineSkillLevel:     10,
		EngineMoveTimeMillis: 1000,
		EngineDebounceMillis: 150,
		HandoffTTLSec:        86400,
	}

	cfg.ServerBaseURL = strings.TrimSpace(os.Getenv("SERVER_BASE_URL"))
	cfg.ServerWSURL = strings.TrimSpace(os.Getenv("SERVER_WS_URL"))
	cfg.UserID = strings.TrimSpace(os.Getenv("USER_ID"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))

	if v := strings.TrimSpace(os.Getenv("ENGINE_SKILL_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 20 {
			cfg.EngineSkillLevel = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_MOVE_TIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineMoveTimeMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_DEBOUNCE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineDebounceMillis = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HANDOFF_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HandoffTTLSec = n
		}
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if cfg.ServerBaseURL == "" {
		return nil, errors.New("SERVER_BASE_URL is required")
	}
	if cfg.ServerWSURL == "" {
		return nil, errors.New("SERVER_WS_URL is required")
	}
	if cfg.UserID == "" {
		return nil, errors.New("USER_ID is required")
	}

	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if s := strings.TrimSpace(fc.ServerBaseURL); s != "" {
		cfg.ServerBaseURL = s
	}
	if s := strings.TrimSpace(fc.ServerWSURL); s != "" {
		cfg.ServerWSURL = s
	}
	if s := strings.TrimSpace(fc.UserID); s != "" {
		cfg.UserID = s
	}
	if s := strings.TrimSpace(fc.RedisURL); s != "" {
		cfg.RedisURL = s
	}
	if s := strings.TrimSpace(fc.Engine.StockfishPath); s != "" {
		cfg.StockfishPath = s
	}
	if fc.Engine.SkillLevel != nil && *fc.Engine.SkillLevel >= 0 && *fc.Engine.SkillLevel <= 20 {
		cfg.EngineSkillLevel = *fc.Engine.SkillLevel
	}
	if fc.Engine.MoveTimeMillis != nil && *fc.Engine.MoveTimeMillis > 0 {
		cfg.EngineMoveTimeMillis = *fc.Engine.MoveTimeMillis
	}
	if fc.Engine.DebounceMillis != nil && *fc.Engine.DebounceMillis > 0 {
		cfg.EngineDebounceMillis = *fc.Engine.DebounceMillis
	}
	if fc.HandoffTTLSec != nil && *fc.HandoffTTLSec > 0 {
		cfg.HandoffTTLSec = *fc.HandoffTTLSec
	}
	return nil
}
