package store

import "ossensor/internal/model"

// Config controls where the store lives and what it is allowed to retain.
type Config struct {
	// StoragePath is the directory holding the database file. Empty means
	// the current directory.
	StoragePath string `yaml:"storage_path"`

	// Mode governs content retention. The default keeps derived features
	// only; full_source_internal additionally records content paths.
	Mode model.StorageMode `yaml:"mode"`
}

// DefaultConfig returns the derived-features-only configuration.
func DefaultConfig() Config {
	return Config{
		StoragePath: "./data",
		Mode:        model.StorageDerivedOnly,
	}
}
