// Package config loads rcsfs's mount-time environment, per spec.md
// §6 and SPEC_FULL.md §6's ambient additions. Diagnostics follow the
// teacher's own style: log.Fatalf to stderr, not a returned error,
// since a missing store path is unrecoverable at startup.
package config

import (
	"log"
	"os"
	"syscall"
)

// Config is the fully resolved mount-time configuration.
type Config struct {
	StorePath  string // RCSFS_STORE
	MountPoint string // RCSFS_MOUNTPOINT
	LogLevel   string // RCSFS_LOG_LEVEL, default "info"
}

// Load reads the environment, applies the process umask spec.md §6
// requires, and fatally exits if the store path is missing.
func Load() Config {
	store := os.Getenv("RCSFS_STORE")
	if store == "" {
		log.Fatalf("rcsfs: RCSFS_STORE is not set; refusing to start")
	}
	mount := os.Getenv("RCSFS_MOUNTPOINT")
	if mount == "" {
		log.Fatalf("rcsfs: RCSFS_MOUNTPOINT is not set; refusing to start")
	}
	level := os.Getenv("RCSFS_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	syscall.Umask(0077)

	return Config{StorePath: store, MountPoint: mount, LogLevel: level}
}
