package config

import (
	"os"
	"testing"
)

func TestLoadDefaultsLogLevel(t *testing.T) {
	t.Setenv("RCSFS_STORE", t.TempDir())
	t.Setenv("RCSFS_MOUNTPOINT", t.TempDir())
	os.Unsetenv("RCSFS_LOG_LEVEL")

	cfg := Load()
	if cfg.LogLevel != "info" {
		t.Errorf("got log level %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadHonorsExplicitLogLevel(t *testing.T) {
	t.Setenv("RCSFS_STORE", t.TempDir())
	t.Setenv("RCSFS_MOUNTPOINT", t.TempDir())
	t.Setenv("RCSFS_LOG_LEVEL", "debug")

	cfg := Load()
	if cfg.LogLevel != "debug" {
		t.Errorf("got log level %q, want %q", cfg.LogLevel, "debug")
	}
}
