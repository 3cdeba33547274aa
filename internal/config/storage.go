package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
)

// StorageConfig holds the file backend for the persona and database backups
type StorageConfig struct {
	Backend    string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`                      // "local" or "s3"
	LocalDir   string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"~/friday-assistant/data"` // Base directory for local storage
	S3Bucket   string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`                                  // S3 bucket name
	S3Prefix   string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`                                  // S3 object key prefix (optional)
	S3Region   string `env:"STORAGE_S3_REGION" yaml:"s3_region"`                                  // AWS region
	S3Endpoint string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"`                              // S3-compatible endpoint (optional)

	// BackupKeep is how many database backups survive rotation
	BackupKeep int `env:"STORAGE_BACKUP_KEEP" yaml:"backup_keep" default:"7"`
}

// Validate checks StorageConfig
func (c StorageConfig) Validate() error {
	var result error
	switch storage_manager.BackendType(c.Backend) {
	case storage_manager.BackendLocal:
		if strings.TrimSpace(c.LocalDir) == "" {
			result = multierror.Append(result, fmt.Errorf("storage local_dir is required for the local backend"))
		}
	case storage_manager.BackendS3:
		if c.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage s3_bucket is required for the s3 backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported storage backend %q (must be 'local' or 's3')", c.Backend))
	}
	if c.BackupKeep < 1 {
		result = multierror.Append(result, fmt.Errorf("backup_keep must be at least 1, got %d", c.BackupKeep))
	}
	return result
}

// ManagerConfig converts the settings for storage_manager.New.
func (c StorageConfig) ManagerConfig() (storage_manager.Config, error) {
	dir := c.LocalDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return storage_manager.Config{}, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return storage_manager.Config{
		Backend:  storage_manager.BackendType(c.Backend),
		BaseDir:  dir,
		Bucket:   c.S3Bucket,
		Prefix:   c.S3Prefix,
		Region:   c.S3Region,
		Endpoint: c.S3Endpoint,
	}, nil
}
