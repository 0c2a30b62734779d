package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.Driver != StorageDriverMinIO {
		t.Fatalf("expected default driver %q, got %q", StorageDriverMinIO, cfg.Storage.Driver)
	}
	if cfg.Session.Store != SessionStoreMemory {
		t.Fatalf("expected default session store %q, got %q", SessionStoreMemory, cfg.Session.Store)
	}
	if cfg.Storage.MaxUploadSize != 50*1024*1024 {
		t.Fatalf("unexpected max upload size %d", cfg.Storage.MaxUploadSize)
	}
	if cfg.Progress.ReplayBuffer != 0 {
		t.Fatalf("expected replay disabled by default, got %d", cfg.Progress.ReplayBuffer)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("unexpected address %s", cfg.Server.Address())
	}
	if cfg.Server.ReadTimeout != 0 {
		t.Fatalf("whole-request read timeout must default to off, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.ReadHeaderTimeout != 15*time.Second {
		t.Fatalf("unexpected header timeout %s", cfg.Server.ReadHeaderTimeout)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "DISK")
	t.Setenv("SESSION_STORE", "badger")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("PROGRESS_REPLAY_BUFFER", "8")
	t.Setenv("MINIO_USE_SSL", "yes")
	t.Setenv("FILESTORE_PUBLIC_URL", "https://files.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Storage.Driver != StorageDriverDisk {
		t.Fatalf("expected disk driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Session.Store != SessionStoreBadger {
		t.Fatalf("expected badger store, got %q", cfg.Session.Store)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Fatalf("unexpected session ttl %s", cfg.Session.TTL)
	}
	if cfg.Progress.ReplayBuffer != 8 {
		t.Fatalf("unexpected replay buffer %d", cfg.Progress.ReplayBuffer)
	}
	if !cfg.MinIO.UseSSL {
		t.Fatalf("expected MINIO_USE_SSL to parse as true")
	}
	if cfg.Auth.PublicBaseURL != "https://files.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Auth.PublicBaseURL)
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")
	t.Setenv("SESSION_STORE", "redis")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for unknown drivers")
	}
}

func TestLoadRejectsPongWaitBelowPing(t *testing.T) {
	t.Setenv("PROGRESS_PING_INTERVAL", "30s")
	t.Setenv("PROGRESS_PONG_WAIT", "10s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error when pong wait is shorter than ping interval")
	}
}
