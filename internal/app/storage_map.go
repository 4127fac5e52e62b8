package app

import (
	"fmt"
	"strings"

	"purrbot/internal/config"
	"purrbot/internal/storage"
)

// mapStorageConfig turns the yaml storage section into a storage.Config.
// The bool is false when persistence is off: no section, empty driver,
// or driver "none".
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "sqlite", "sqlite3":
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", strings.TrimSpace(cfg.Storage.Driver))
	}

	path := strings.TrimSpace(cfg.Storage.Path)
	if path == "" {
		return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
	}
	// Zero passes through; the store applies its own default.
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
}
