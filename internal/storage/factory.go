package storage

import (
	"fmt"

	"studykit-worker/internal/storage/filesystem"
	"studykit-worker/internal/storage/s3"
	"studykit-worker/pkg/storage"
)

// NewStorage creates a storage backend from the configuration.
func NewStorage(config *storage.StorageConfig) (storage.Storage, error) {
	switch config.Type {
	case "filesystem":
		return filesystem.NewFilesystemStorage(config.BasePath)
	case "s3":
		return s3.NewS3Storage(config)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", config.Type)
	}
}
