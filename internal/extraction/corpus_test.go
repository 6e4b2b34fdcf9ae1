package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func source(title string, length int) ExtractedSource {
	text := strings.Repeat("a", length)
	return ExtractedSource{Title: title, Text: text, TextLength: length}
}

func TestBuildCorpus_AllSourcesFit(t *testing.T) {
	corpus, err := BuildCorpus([]ExtractedSource{
		source("notes", 3000),
		source("slides", 4000),
	}, DefaultCorpusBudget)
	require.NoError(t, err)

	assert.Equal(t, 7000, corpus.TotalChars)
	require.Len(t, corpus.Sources, 2)
	assert.True(t, corpus.Sources[0].Included)
	assert.True(t, corpus.Sources[1].Included)
	assert.Equal(t, 3000, corpus.Sources[0].TextLength)
	assert.Equal(t, 4000, corpus.Sources[1].TextLength)
}

func TestBuildCorpus_TruncatesAtBudget(t *testing.T) {
	corpus, err := BuildCorpus([]ExtractedSource{
		source("first", 80000),
		source("second", 80000),
	}, 120000)
	require.NoError(t, err)

	assert.Equal(t, 120000, corpus.TotalChars)
	require.Len(t, corpus.Sources, 2)
	assert.True(t, corpus.Sources[0].Included)
	assert.True(t, corpus.Sources[1].Included, "the truncated source still contributes")
	assert.Equal(t, 80000, corpus.Sources[1].TextLength, "recorded length is pre-truncation")
}

func TestBuildCorpus_ExcludesSourcesPastBudget(t *testing.T) {
	corpus, err := BuildCorpus([]ExtractedSource{
		source("first", 100),
		source("second", 50),
		source("third", 200),
	}, 120)
	require.NoError(t, err)

	assert.Equal(t, 120, corpus.TotalChars)
	assert.True(t, corpus.Sources[0].Included)
	assert.True(t, corpus.Sources[1].Included)
	assert.False(t, corpus.Sources[2].Included, "assembly stops once the budget is filled")
	assert.Equal(t, 200, corpus.Sources[2].TextLength)
}

func TestBuildCorpus_SkipsEmptySources(t *testing.T) {
	corpus, err := BuildCorpus([]ExtractedSource{
		{Title: "broken download"},
		source("good", 500),
	}, DefaultCorpusBudget)
	require.NoError(t, err)

	assert.Equal(t, 500, corpus.TotalChars)
	assert.False(t, corpus.Sources[0].Included)
	assert.Zero(t, corpus.Sources[0].TextLength)
	assert.True(t, corpus.Sources[1].Included)
}

func TestBuildCorpus_EmptyCorpus(t *testing.T) {
	_, err := BuildCorpus([]ExtractedSource{
		{Title: "nothing"},
		{Title: "also nothing"},
	}, DefaultCorpusBudget)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	_, err = BuildCorpus(nil, DefaultCorpusBudget)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestTargetCounts_Tiers(t *testing.T) {
	tests := []struct {
		name       string
		chars      int
		flashcards int
		quiz       int
	}{
		{"tiny floor", 100, 3, 2},
		{"tiny proportional", 4500, 9, 4},
		{"medium floor", 5000, 10, 5},
		{"medium proportional", 12000, 20, 10},
		{"large", 60000, 80, 40},
		{"very large cap", 500000, 120, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flashcards, quiz := TargetCounts(tt.chars)
			assert.Equal(t, tt.flashcards, flashcards)
			assert.Equal(t, tt.quiz, quiz)
		})
	}
}

func TestTargetCounts_MonotoneAndBounded(t *testing.T) {
	prevFlashcards, prevQuiz := 0, 0
	for chars := 0; chars <= 300000; chars += 250 {
		flashcards, quiz := TargetCounts(chars)

		assert.GreaterOrEqual(t, flashcards, prevFlashcards,
			"flashcard count decreased at %d chars", chars)
		assert.GreaterOrEqual(t, quiz, prevQuiz,
			"quiz count decreased at %d chars", chars)

		assert.GreaterOrEqual(t, flashcards, 3)
		assert.LessOrEqual(t, flashcards, 120)
		assert.GreaterOrEqual(t, quiz, 2)
		assert.LessOrEqual(t, quiz, 60)

		prevFlashcards, prevQuiz = flashcards, quiz
	}
}
