package storage

import (
	"context"
	"io"
)

// Storage abstracts the object store holding uploaded documents.
type Storage interface {
	// Upload writes a file to the storage
	Upload(ctx context.Context, path string, data io.Reader) error

	// Download reads a file from the storage
	Download(ctx context.Context, path string) (io.Reader, error)

	// Exists checks whether a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// List returns the files under a given prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// StorageConfig contains the storage backend configuration.
type StorageConfig struct {
	Type      string // "filesystem" or "s3"
	BasePath  string // for filesystem
	Endpoint  string // for S3-compatible stores
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}
