package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	HTTP      HTTPConfig      `json:"http"`
	Responder ResponderConfig `json:"responder"`
	Session   SessionConfig   `json:"session"`
	Queue     QueueConfig     `json:"queue"`
}

type AgentConfig struct {
	Name      string `json:"name"`
	CLIUserID string `json:"cli_user_id"`
}

type HTTPConfig struct {
	Port               int `json:"port"`
	ResponseTimeoutSec int `json:"response_timeout_sec"`
}

// ResponderConfig drives the optional LLM rephrasing of structured
// replies. Disabled or keyless configs fall back to plain text.
type ResponderConfig struct {
	Enabled    bool   `json:"enabled"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	TimeoutSec int    `json:"timeout_sec"`
}

type SessionConfig struct {
	TTLSec           int `json:"ttl_sec"`
	SweepIntervalSec int `json:"sweep_interval_sec"`
}

type QueueConfig struct {
	Enabled           bool `json:"enabled"`
	Workers           int  `json:"workers"`
	Capacity          int  `json:"capacity"`
	MaxRetries        int  `json:"max_retries"`
	RetryDelayMs      int  `json:"retry_delay_ms"`
	AttemptTimeoutSec int  `json:"attempt_timeout_sec"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	cfg := defaultConfig()
	mgr := &Manager{
		path: path,
		cfg:  cfg,
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Name:      "TodoChat",
			CLIUserID: "local_user",
		},
		HTTP: HTTPConfig{
			Port:               8092,
			ResponseTimeoutSec: 30,
		},
		Responder: ResponderConfig{
			Enabled:    false,
			Model:      "gpt-4o-mini",
			TimeoutSec: 20,
		},
		Session: SessionConfig{
			TTLSec:           600,
			SweepIntervalSec: 60,
		},
		Queue: QueueConfig{
			Enabled:           false,
			Workers:           4,
			Capacity:          64,
			MaxRetries:        1,
			RetryDelayMs:      200,
			AttemptTimeoutSec: 30,
		},
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Agent.Name) == "" {
		cfg.Agent.Name = "TodoChat"
	}
	if strings.TrimSpace(cfg.Agent.CLIUserID) == "" {
		cfg.Agent.CLIUserID = "local_user"
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		cfg.HTTP.Port = 8092
	}
	if cfg.HTTP.ResponseTimeoutSec <= 0 {
		cfg.HTTP.ResponseTimeoutSec = 30
	}
	if strings.TrimSpace(cfg.Responder.Model) == "" {
		cfg.Responder.Model = "gpt-4o-mini"
	}
	if cfg.Responder.TimeoutSec <= 0 {
		cfg.Responder.TimeoutSec = 20
	}
	if cfg.Session.TTLSec <= 0 {
		cfg.Session.TTLSec = 600
	}
	if cfg.Session.SweepIntervalSec <= 0 {
		cfg.Session.SweepIntervalSec = 60
	}
	if cfg.Queue.Workers <= 0 {
		cfg.Queue.Workers = 4
	}
	if cfg.Queue.Capacity <= 0 {
		cfg.Queue.Capacity = 64
	}
	if cfg.Queue.MaxRetries < 0 {
		cfg.Queue.MaxRetries = 0
	}
	if cfg.Queue.RetryDelayMs < 0 {
		cfg.Queue.RetryDelayMs = 0
	}
	if cfg.Queue.AttemptTimeoutSec <= 0 {
		cfg.Queue.AttemptTimeoutSec = 30
	}
}
