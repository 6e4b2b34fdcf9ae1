package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidationConfig holds the request limits in one place.
type ValidationConfig struct {
	MaxTitleLength       int
	MaxTagLength         int
	MaxTags              int
	MaxTextLength        int // inline source text
	MaxSources           int
	MaxStoragePathLength int
	MaxMetadataSize      int
	AllowedExtensions    map[string]bool
}

func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxTitleLength:       200,
		MaxTagLength:         50,
		MaxTags:              20,
		MaxTextLength:        2_000_000,
		MaxSources:           50,
		MaxStoragePathLength: 512,
		MaxMetadataSize:      10_000,
		AllowedExtensions: map[string]bool{
			".txt":      true,
			".text":     true,
			".md":       true,
			".markdown": true,
			".html":     true,
			".htm":      true,
			".rst":      true,
			".adoc":     true,
			".csv":      true,
			".json":     true,
		},
	}
}

type ValidationService struct {
	config *ValidationConfig
}

func NewValidationService(config *ValidationConfig) *ValidationService {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &ValidationService{config: config}
}

type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []*ValidationError `json:"errors,omitempty"`
}

func (vr *ValidationResult) AddError(field, value, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

func (vr *ValidationResult) merge(other *ValidationResult) {
	if !other.Valid {
		vr.Valid = false
		vr.Errors = append(vr.Errors, other.Errors...)
	}
}

// ValidateUUIDField checks that a field is a parseable, non-nil UUID.
func (vs *ValidationService) ValidateUUIDField(field, value string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if value == "" {
		result.AddError(field, "", field+" is required", "REQUIRED")
		return result
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		result.AddError(field, value, field+" must be a valid UUID", "INVALID_UUID")
		return result
	}
	if parsed == uuid.Nil {
		result.AddError(field, value, field+" cannot be the nil UUID", "NIL_UUID")
	}
	return result
}

func (vs *ValidationService) ValidateTitle(title string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(title) == "" {
		result.AddError("title", title, "title is required", "REQUIRED")
		return result
	}
	if !utf8.ValidString(title) {
		result.AddError("title", title, "title must be valid UTF-8", "INVALID_ENCODING")
	}
	if utf8.RuneCountInString(title) > vs.config.MaxTitleLength {
		result.AddError("title", title,
			fmt.Sprintf("title too long (max %d characters)", vs.config.MaxTitleLength),
			"TOO_LONG")
	}
	return result
}

func (vs *ValidationService) ValidateTags(tags []string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if len(tags) > vs.config.MaxTags {
		result.AddError("tags", "",
			fmt.Sprintf("too many tags (max %d)", vs.config.MaxTags),
			"TOO_MANY_TAGS")
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			result.AddError("tags", tag, "tags cannot be empty", "EMPTY_TAG")
			continue
		}
		if utf8.RuneCountInString(tag) > vs.config.MaxTagLength {
			result.AddError("tags", tag,
				fmt.Sprintf("tag too long (max %d characters)", vs.config.MaxTagLength),
				"TOO_LONG")
		}
	}
	return result
}

// ValidateStoragePath rejects absolute paths, directory traversal and
// extensions the extractor cannot decode.
func (vs *ValidationService) ValidateStoragePath(path string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if path == "" {
		result.AddError("storage_path", "", "storage path is required", "REQUIRED")
		return result
	}
	if len(path) > vs.config.MaxStoragePathLength {
		result.AddError("storage_path", path,
			fmt.Sprintf("storage path too long (max %d characters)", vs.config.MaxStoragePathLength),
			"TOO_LONG")
	}
	if !utf8.ValidString(path) {
		result.AddError("storage_path", path, "storage path must be valid UTF-8", "INVALID_ENCODING")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		result.AddError("storage_path", path, "storage path cannot be absolute", "ABSOLUTE_PATH")
	}
	if strings.Contains(path, "..") {
		result.AddError("storage_path", path, "storage path cannot contain ..", "PATH_TRAVERSAL")
	}
	if strings.ContainsAny(path, "\x00\r\n") {
		result.AddError("storage_path", path, "storage path contains control characters", "CONTROL_CHARACTERS")
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		result.AddError("storage_path", path, "storage path must have a file extension", "NO_EXTENSION")
	} else if !vs.config.AllowedExtensions[ext] {
		result.AddError("storage_path", path,
			fmt.Sprintf("file extension %s not allowed", ext),
			"FORBIDDEN_EXTENSION")
	}
	return result
}

func (vs *ValidationService) ValidateInlineText(text string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if utf8.RuneCountInString(text) > vs.config.MaxTextLength {
		result.AddError("text", "",
			fmt.Sprintf("text too long (max %d characters)", vs.config.MaxTextLength),
			"TOO_LONG")
	}
	return result
}

func (vs *ValidationService) ValidateMetadata(metadata map[string]interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	size := 0
	for key, value := range metadata {
		size += len(key) + len(fmt.Sprintf("%v", value))
	}
	if size > vs.config.MaxMetadataSize {
		result.AddError("metadata", "",
			fmt.Sprintf("metadata too large (max %d bytes)", vs.config.MaxMetadataSize),
			"TOO_LARGE")
	}
	return result
}
