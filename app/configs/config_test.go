package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}

	applyDefaults(&cfg)

	if cfg.Agent.Name != "TodoChat" {
		t.Fatalf("unexpected agent name: %s", cfg.Agent.Name)
	}
	if cfg.Agent.CLIUserID != "local_user" {
		t.Fatalf("unexpected cli user id: %s", cfg.Agent.CLIUserID)
	}
	if cfg.HTTP.Port != 8092 {
		t.Fatalf("unexpected port: %d", cfg.HTTP.Port)
	}
	if cfg.Session.TTLSec != 600 {
		t.Fatalf("unexpected session ttl: %d", cfg.Session.TTLSec)
	}
	if cfg.Session.SweepIntervalSec != 60 {
		t.Fatalf("unexpected sweep interval: %d", cfg.Session.SweepIntervalSec)
	}
	if cfg.Responder.Enabled {
		t.Fatal("responder must stay opt-in")
	}
	if cfg.Responder.TimeoutSec != 20 {
		t.Fatalf("unexpected responder timeout: %d", cfg.Responder.TimeoutSec)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.Capacity != 64 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
}

func TestApplyDefaultsSanitizesInvalidValues(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{Port: 99999},
		Session: SessionConfig{TTLSec: -1},
		Queue:   QueueConfig{MaxRetries: -3, RetryDelayMs: -100},
	}

	applyDefaults(&cfg)

	if cfg.HTTP.Port != 8092 {
		t.Fatalf("out-of-range port should be reset, got %d", cfg.HTTP.Port)
	}
	if cfg.Session.TTLSec != 600 {
		t.Fatalf("negative ttl should be reset, got %d", cfg.Session.TTLSec)
	}
	if cfg.Queue.MaxRetries != 0 || cfg.Queue.RetryDelayMs != 0 {
		t.Fatalf("negative queue values should be clamped: %+v", cfg.Queue)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		Agent:   AgentConfig{Name: "Butler", CLIUserID: "me"},
		HTTP:    HTTPConfig{Port: 9000},
		Session: SessionConfig{TTLSec: 120},
	}

	applyDefaults(&cfg)

	if cfg.Agent.Name != "Butler" || cfg.Agent.CLIUserID != "me" {
		t.Fatalf("explicit agent config was overwritten: %+v", cfg.Agent)
	}
	if cfg.HTTP.Port != 9000 {
		t.Fatalf("explicit port was overwritten: %d", cfg.HTTP.Port)
	}
	if cfg.Session.TTLSec != 120 {
		t.Fatalf("explicit ttl was overwritten: %d", cfg.Session.TTLSec)
	}
}

func TestNewManagerWritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "config.json")

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if mgr.Get().Agent.Name != "TodoChat" {
		t.Fatalf("unexpected default config: %+v", mgr.Get())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var onDisk Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("config file not valid json: %v", err)
	}
	if onDisk.HTTP.Port != 8092 {
		t.Fatalf("unexpected persisted port: %d", onDisk.HTTP.Port)
	}
}

func TestNewManagerLoadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	seed := `{"agent":{"name":"Butler"},"http":{"port":9000}}`
	if err := os.WriteFile(path, []byte(seed), 0644); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Agent.Name != "Butler" || cfg.HTTP.Port != 9000 {
		t.Fatalf("file values not loaded: %+v", cfg)
	}
	if cfg.Session.TTLSec != 600 {
		t.Fatalf("defaults not applied to missing sections: %+v", cfg.Session)
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	updated, err := mgr.Update(func(c *Config) {
		c.HTTP.Port = 9100
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.HTTP.Port != 9100 {
		t.Fatalf("update not applied: %d", updated.HTTP.Port)
	}

	reloaded, err := NewManager(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Get().HTTP.Port != 9100 {
		t.Fatalf("update not persisted: %d", reloaded.Get().HTTP.Port)
	}
}
