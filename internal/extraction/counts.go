package extraction

// TargetCounts scales the requested number of flashcards and quiz questions
// with corpus size. The tiers are a heuristic; the clamps are chosen so both
// counts are non-decreasing in totalChars.
func TargetCounts(totalChars int) (flashcards, quiz int) {
	switch {
	case totalChars < 5000:
		flashcards = maxInt(3, totalChars/500)
		quiz = maxInt(2, totalChars/1000)
	case totalChars < 30000:
		flashcards = clamp(totalChars/600, 10, 50)
		quiz = clamp(totalChars/1200, 5, 25)
	case totalChars < 80000:
		flashcards = clamp(totalChars/600, 50, 80)
		quiz = clamp(totalChars/1200, 25, 40)
	default:
		flashcards = clamp(totalChars/800, 80, 120)
		quiz = clamp(totalChars/1600, 40, 60)
	}
	return flashcards, quiz
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
