package session

import (
	"math"
	"slices"
)

const (
	// PassGrade is the lowest passing grade on the 0-10 scale.
	PassGrade = 5
	// Penalty is subtracted for a wrong answer when negative marking is on.
	Penalty = 0.5
)

// IsCorrect reports whether the selected option indices are exactly the
// correct ones. Order and duplicates are ignored; partial selections fail.
func IsCorrect(selected, correct []int) bool {
	a := normalize(selected)
	b := normalize(correct)
	return slices.Equal(a, b)
}

func normalize(idx []int) []int {
	out := slices.Clone(idx)
	slices.Sort(out)
	return slices.Compact(out)
}

// Points returns the score change for one answered test item.
func Points(correct, negativeMarking bool) float64 {
	switch {
	case correct:
		return 1
	case negativeMarking:
		return -Penalty
	default:
		return 0
	}
}

// Grade converts a raw score over n items to the 0-10 scale, clamping
// negative totals at zero.
func Grade(score float64, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(math.Max(0, score) / float64(n) * 10))
}

// Passed reports whether grade reaches PassGrade.
func Passed(grade int) bool {
	return grade >= PassGrade
}
