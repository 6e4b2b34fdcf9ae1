package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"studykit-worker/pkg/storage"
)

// Service wraps the storage backend with the document-path conventions used
// by the extraction pipeline. Documents live under documents/{path}.
type Service struct {
	storage storage.Storage
}

func NewService(storage storage.Storage) *Service {
	return &Service{
		storage: storage,
	}
}

// UploadDocument stores a document under its storage path.
func (s *Service) UploadDocument(ctx context.Context, storagePath string, content io.Reader) error {
	return s.storage.Upload(ctx, documentKey(storagePath), content)
}

// DownloadDocument fetches the raw bytes of a stored document.
func (s *Service) DownloadDocument(ctx context.Context, storagePath string) ([]byte, error) {
	reader, err := s.storage.Download(ctx, documentKey(storagePath))
	if err != nil {
		return nil, fmt.Errorf("failed to download document %s: %w", storagePath, err)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", storagePath, err)
	}

	return data, nil
}

// DocumentExists checks whether a document is present in the store.
func (s *Service) DocumentExists(ctx context.Context, storagePath string) (bool, error) {
	return s.storage.Exists(ctx, documentKey(storagePath))
}

// DeleteDocument removes a stored document.
func (s *Service) DeleteDocument(ctx context.Context, storagePath string) error {
	return s.storage.Delete(ctx, documentKey(storagePath))
}

func documentKey(storagePath string) string {
	cleaned := strings.TrimPrefix(storagePath, "/")
	if strings.HasPrefix(cleaned, "documents/") {
		return cleaned
	}
	return "documents/" + cleaned
}
