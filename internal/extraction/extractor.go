package extraction

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"studykit-worker/internal/logger"
	"studykit-worker/pkg/models"

	"github.com/google/uuid"
)

// DocumentDownloader is the slice of the storage service extraction needs.
type DocumentDownloader interface {
	DownloadDocument(ctx context.Context, path string) ([]byte, error)
}

// ExtractedSource is one source after text extraction. Text is empty when
// the source failed to download or yielded nothing usable; the source still
// appears in the slice so its existence can be recorded downstream.
type ExtractedSource struct {
	Title       string
	DocumentID  *uuid.UUID
	StoragePath string
	Text        string
	TextLength  int
}

type Extractor struct {
	storage DocumentDownloader
	log     *logger.Logger
}

func NewExtractor(storage DocumentDownloader, log *logger.Logger) *Extractor {
	return &Extractor{storage: storage, log: log}
}

// Extract pulls and normalizes text for every source, in input order. A
// source that fails is kept with empty text rather than aborting the batch.
func (e *Extractor) Extract(ctx context.Context, sources []models.SourceInput) []ExtractedSource {
	out := make([]ExtractedSource, 0, len(sources))
	for _, src := range sources {
		extracted := ExtractedSource{
			Title:       src.Title,
			DocumentID:  src.DocumentID,
			StoragePath: src.StoragePath,
		}
		text, err := e.extractOne(ctx, src)
		if err != nil {
			e.log.Warn("Source extraction failed, skipping",
				"title", src.Title, "error", err)
		} else {
			extracted.Text = text
			extracted.TextLength = utf8.RuneCountInString(text)
		}
		out = append(out, extracted)
	}
	return out
}

func (e *Extractor) extractOne(ctx context.Context, src models.SourceInput) (string, error) {
	if src.RawText != "" {
		return Normalize(src.RawText), nil
	}
	if src.StoragePath == "" {
		return "", fmt.Errorf("source %q has neither inline text nor a storage path", src.Title)
	}

	data, err := e.storage.DownloadDocument(ctx, src.StoragePath)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", src.StoragePath, err)
	}
	text, err := decodeDocument(src.StoragePath, data)
	if err != nil {
		return "", err
	}
	return Normalize(text), nil
}

var htmlTagRe = regexp.MustCompile(`(?s)<[^>]*>`)

// decodeDocument turns stored bytes into plain text. Markup is stripped for
// HTML; anything else is accepted as long as it looks like text.
func decodeDocument(path string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("document %s is empty", path)
	}

	s := string(data)
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return htmlTagRe.ReplaceAllString(s, " "), nil
	}

	printable := 0
	total := 0
	for _, r := range s {
		total++
		if r == '\n' || r == '\r' || r == '\t' || r == ' ' || (r >= 32 && r != 127) {
			printable++
		}
	}
	if total > 0 && float64(printable)/float64(total) > 0.90 {
		return s, nil
	}
	return "", fmt.Errorf("document %s does not contain extractable text", path)
}

// Normalize repairs invalid UTF-8, drops non-printing runes and collapses
// all whitespace runs to single spaces.
func Normalize(s string) string {
	s = sanitizeUTF8(s)
	s = stripNonPrinting(s)
	return collapseWhitespace(s)
}

func sanitizeUTF8(s string) string {
	if s == "" || utf8.ValidString(s) {
		return s
	}
	// A space keeps words around the invalid sequence separated.
	return strings.ToValidUTF8(s, " ")
}

func stripNonPrinting(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == ' ' {
			return r
		}
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
