package review

import (
	"fmt"
	"math"
)

// Quality is the numeric SM-2 answer quality.
type Quality int

const (
	QualityHard   Quality = 1
	QualityMedium Quality = 3
	QualityEasy   Quality = 5
)

// ParseQuality maps the submission surface's rating to a quality value.
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "easy":
		return QualityEasy, nil
	case "medium":
		return QualityMedium, nil
	case "hard":
		return QualityHard, nil
	default:
		return 0, fmt.Errorf("invalid quality %q, want easy, medium or hard", s)
	}
}

// SM2State is the memory state of one card for one user.
type SM2State struct {
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
}

const minEaseFactor = 1.3

// SM2Review evaluates one review. Pure function of (prior state, quality).
// The interval is computed with the prior ease factor; the ease factor
// adjustment applies afterwards.
func SM2Review(state SM2State, quality Quality) SM2State {
	next := state

	if quality >= QualityMedium {
		switch state.Repetitions {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Round(float64(state.IntervalDays) * state.EaseFactor))
		}
		next.Repetitions = state.Repetitions + 1
	} else {
		next.Repetitions = 0
		next.IntervalDays = 1
	}

	q := float64(quality)
	next.EaseFactor = state.EaseFactor + 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if next.EaseFactor < minEaseFactor {
		next.EaseFactor = minEaseFactor
	}

	return next
}

// Box is the UI-facing 0-5 tier derived from the repetition count.
func Box(repetitions int) int {
	if repetitions > 5 {
		return 5
	}
	return repetitions
}
