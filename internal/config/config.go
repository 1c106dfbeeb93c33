package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	LogConfig logger.LogConfig `json:"log_config"`
	Server    ServerConfig     `json:"server"`
	DBPath    string           `json:"db_path"`
	Stores    StoresConfig     `json:"stores"`
	AI        AIConfig         `json:"ai"`
	Mail      MailConfig       `json:"mail"`
	Record    RecordConfig     `json:"record"`
	Jobs      JobsConfig       `json:"jobs"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

type StoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StoresConfig names the four document collections: raw sealed chunks,
// growing session documents, derived artifacts, and the archive.
type StoresConfig struct {
	Voice   StoreConfig `json:"voice"`
	Text    StoreConfig `json:"text"`
	Docs    StoreConfig `json:"docs"`
	Archive StoreConfig `json:"archive"`
}

type AIConfig struct {
	Provider       string      `json:"provider"`
	Models         []string    `json:"models"`
	MaxRetries     int         `json:"max_retries"`
	RetryDelayMs   int         `json:"retry_delay_ms"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type RecordConfig struct {
	Endpoint        string   `json:"endpoint"`
	StateDir        string   `json:"state_dir"`
	FallbackDir     string   `json:"fallback_dir"`
	ChunkDurationMs int64    `json:"chunk_duration_ms"`
	MaxDurationMs   int64    `json:"max_duration_ms"`
	MaxChunks       int      `json:"max_chunks"`
	MimeType        string   `json:"mime_type"`
	CaptureCommand  []string `json:"capture_command"`
}

type JobsConfig struct {
	TranscribeCron   string `json:"transcribe_cron"`
	PromoteCron      string `json:"promote_cron"`
	StabilityMinutes int    `json:"stability_minutes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.RetryDelayMs == 0 {
		c.AI.RetryDelayMs = 2000
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 300
	}
	if c.Record.ChunkDurationMs == 0 {
		c.Record.ChunkDurationMs = 5 * 60 * 1000
	}
	if c.Record.MaxDurationMs == 0 {
		c.Record.MaxDurationMs = 60 * 60 * 1000
	}
	if c.Record.MaxChunks == 0 {
		c.Record.MaxChunks = 12
	}
	if c.Record.MimeType == "" {
		c.Record.MimeType = "audio/webm;codecs=opus"
	}
	if c.Jobs.TranscribeCron == "" {
		c.Jobs.TranscribeCron = "* * * * *"
	}
	if c.Jobs.PromoteCron == "" {
		c.Jobs.PromoteCron = "*/10 * * * *"
	}
	if c.Jobs.StabilityMinutes == 0 {
		c.Jobs.StabilityMinutes = 20
	}
}

// ValidateServer checks the fields the serve/promote commands need.
func (c *Config) ValidateServer() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	for name, store := range map[string]StoreConfig{
		"voice":   c.Stores.Voice,
		"text":    c.Stores.Text,
		"docs":    c.Stores.Docs,
		"archive": c.Stores.Archive,
	} {
		if store.Type == "" {
			return fmt.Errorf("stores.%s.type is required", name)
		}
	}
	if c.AI.Provider == "" {
		return fmt.Errorf("ai.provider is required")
	}
	if len(c.AI.Models) == 0 {
		return fmt.Errorf("ai.models must name at least one model")
	}
	return nil
}

// ValidateRecord checks the fields the record/upload commands need.
func (c *Config) ValidateRecord() error {
	if c.Record.Endpoint == "" {
		return fmt.Errorf("record.endpoint is required")
	}
	if c.Record.StateDir == "" {
		return fmt.Errorf("record.state_dir is required")
	}
	if c.Record.FallbackDir == "" {
		return fmt.Errorf("record.fallback_dir is required")
	}
	if c.Record.MaxChunks < 1 {
		return fmt.Errorf("record.max_chunks must be positive")
	}
	return nil
}
