package extraction

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// DefaultCorpusBudget bounds the total characters handed to generation.
const DefaultCorpusBudget = 120000

// ErrEmptyCorpus means no source yielded any text to generate from.
var ErrEmptyCorpus = errors.New("no source yielded any text")

// SourceReport records one source's contribution to a corpus. Sources past
// the budget keep their measured length but are not included.
type SourceReport struct {
	Title       string
	DocumentID  *uuid.UUID
	StoragePath string
	TextLength  int
	Included    bool
}

type Corpus struct {
	Text       string
	TotalChars int
	Sources    []SourceReport
}

// BuildCorpus assembles the generation input from extracted sources in
// input order. Each source contributes up to the remaining budget; the one
// that crosses it is truncated to exactly fill it and assembly stops.
// TotalChars counts source characters only, not the joining separators.
func BuildCorpus(sources []ExtractedSource, budget int) (*Corpus, error) {
	if budget <= 0 {
		budget = DefaultCorpusBudget
	}

	var b strings.Builder
	total := 0
	yielded := false
	reports := make([]SourceReport, 0, len(sources))

	for _, src := range sources {
		report := SourceReport{
			Title:       src.Title,
			DocumentID:  src.DocumentID,
			StoragePath: src.StoragePath,
			TextLength:  src.TextLength,
		}
		if src.TextLength > 0 {
			yielded = true
			if remaining := budget - total; remaining > 0 {
				text := src.Text
				chars := src.TextLength
				if chars > remaining {
					text = string([]rune(text)[:remaining])
					chars = remaining
				}
				if b.Len() > 0 {
					b.WriteString("\n\n")
				}
				b.WriteString(text)
				total += chars
				report.Included = true
			}
		}
		reports = append(reports, report)
	}

	if !yielded {
		return nil, ErrEmptyCorpus
	}
	return &Corpus{Text: b.String(), TotalChars: total, Sources: reports}, nil
}
