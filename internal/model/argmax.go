package model

import (
	"math"

	"github.com/pkg/errors"
)

// ErrEmptyScores is returned by Argmax for a zero-length score vector.
var ErrEmptyScores = errors.New("empty score vector")

// Argmax returns the first index holding the maximum score. Non-finite scores
// are rejected rather than ranked.
func Argmax(scores []float32) (int, float32, error) {
	if len(scores) == 0 {
		return 0, 0, ErrEmptyScores
	}

	maxIdx := 0
	maxVal := scores[0]
	for i, val := range scores {
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return 0, 0, errors.Errorf("non-finite score %v at class %d", val, i)
		}
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}
	return maxIdx, maxVal, nil
}
