// Package config loads intake settings from a JSON file with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Model struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

type Store struct {
	// Driver is one of memory, sqlite, bolt or redis.
	Driver    string `json:"driver"`
	Path      string `json:"path"`
	RedisAddr string `json:"redis_addr"`
}

type Config struct {
	Model                   Model  `json:"model"`
	Store                   Store  `json:"store"`
	AutosaveIntervalSeconds int    `json:"autosave_interval_seconds"`
	AITimeoutSeconds        int    `json:"ai_timeout_seconds"`
	UndoCapacity            int    `json:"undo_capacity"`
	HistoryWindow           int    `json:"history_window"`
	VagueMode               string `json:"vague_mode"`
	AllowFreeFormQuestions  bool   `json:"allow_free_form_questions"`
	MaxFreeFormQuestions    int    `json:"max_free_form_questions"`
	CatalogPath             string `json:"catalog_path"`
	LogLevel                string `json:"log_level"`
}

func Default() *Config {
	return &Config{
		Store:                   Store{Driver: "memory"},
		AutosaveIntervalSeconds: 30,
		AITimeoutSeconds:        15,
		UndoCapacity:            10,
		HistoryWindow:           20,
		VagueMode:               "off",
		MaxFreeFormQuestions:    3,
		LogLevel:                "info",
	}
}

// Load reads path when it exists, then applies .env and INTAKE_* environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Model.APIKey = getEnv("INTAKE_API_KEY", c.Model.APIKey)
	c.Model.BaseURL = getEnv("INTAKE_BASE_URL", c.Model.BaseURL)
	c.Model.Model = getEnv("INTAKE_MODEL", c.Model.Model)
	c.Store.Driver = getEnv("INTAKE_STORE_DRIVER", c.Store.Driver)
	c.Store.Path = getEnv("INTAKE_STORE_PATH", c.Store.Path)
	c.Store.RedisAddr = getEnv("INTAKE_REDIS_ADDR", c.Store.RedisAddr)
	c.AutosaveIntervalSeconds = getEnvInt("INTAKE_AUTOSAVE_SECONDS", c.AutosaveIntervalSeconds)
	c.AITimeoutSeconds = getEnvInt("INTAKE_AI_TIMEOUT_SECONDS", c.AITimeoutSeconds)
	c.UndoCapacity = getEnvInt("INTAKE_UNDO_CAPACITY", c.UndoCapacity)
	c.HistoryWindow = getEnvInt("INTAKE_HISTORY_WINDOW", c.HistoryWindow)
	c.VagueMode = getEnv("INTAKE_VAGUE_MODE", c.VagueMode)
	c.AllowFreeFormQuestions = getEnvBool("INTAKE_ALLOW_FREE_FORM", c.AllowFreeFormQuestions)
	c.MaxFreeFormQuestions = getEnvInt("INTAKE_MAX_FREE_FORM", c.MaxFreeFormQuestions)
	c.CatalogPath = getEnv("INTAKE_CATALOG_PATH", c.CatalogPath)
	c.LogLevel = getEnv("INTAKE_LOG_LEVEL", c.LogLevel)
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite", "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", c.Store.Driver)
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.AutosaveIntervalSeconds <= 0 {
		return fmt.Errorf("autosave_interval_seconds must be > 0")
	}
	if c.AITimeoutSeconds <= 0 {
		return fmt.Errorf("ai_timeout_seconds must be > 0")
	}
	if c.UndoCapacity <= 0 {
		return fmt.Errorf("undo_capacity must be > 0")
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be >= 0")
	}
	if c.MaxFreeFormQuestions <= 0 {
		return fmt.Errorf("max_free_form_questions must be > 0")
	}
	switch c.VagueMode {
	case "off", "warn", "reject":
	default:
		return fmt.Errorf("vague_mode must be off, warn or reject")
	}
	return nil
}

// HasModel reports whether a language model is configured.
func (c *Config) HasModel() bool {
	return c.Model.APIKey != "" && c.Model.Model != ""
}

func (c *Config) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSeconds) * time.Second
}

func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
