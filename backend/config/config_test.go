package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	yaml := `
running:
  port: 9000
kafka:
  brokers: ["k1:9092", "k2:9092"]
collab:
  maxDepth: 64
  dispatcher:
    baseBackoff: 10ms
`
	if err := os.WriteFile(filepath.Join(dir, "collabConfig.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Running.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Running.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Collab.MaxDepth != 64 {
		t.Errorf("maxDepth = %d, want 64", cfg.Collab.MaxDepth)
	}
	if cfg.Collab.Dispatcher.BaseBackoff != 10*time.Millisecond {
		t.Errorf("baseBackoff = %v, want 10ms", cfg.Collab.Dispatcher.BaseBackoff)
	}
	// 默认值
	if cfg.Kafka.Topic != "doc-ops" || cfg.Collab.RingCap != 1024 || cfg.Collab.SnapshotTTL != 24*time.Hour {
		t.Errorf("defaults not applied: %+v", cfg.Collab)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error when collabConfig.yaml is absent")
	}
}
