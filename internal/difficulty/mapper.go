// Package difficulty turns mastery estimates and recent scores into a single
// playable difficulty in [MinDifficulty, MaxDifficulty].
package difficulty

import (
	"math"

	"github.com/abhisek/skilltune/internal/bkt"
)

// Controller constants.
const (
	LearningRate      = 0.1
	TargetSuccessRate = 0.7
	RecencyWeight     = 0.8
	MinInteractions   = 3
	MinDifficulty     = 0.1
	MaxDifficulty     = 0.9
	DefaultDifficulty = 0.5
)

// challengeBias keeps students slightly above their estimated mastery.
const challengeBias = 0.1

// MasteryToDifficulty maps a mastery probability to a difficulty. The
// mapping is monotonic non-decreasing and always within bounds.
func MasteryToDifficulty(pKnown float64) float64 {
	return Clamp(MinDifficulty + pKnown*0.8 + challengeBias)
}

// FromSkills derives one difficulty from several skill states. weights may
// be nil for an equal weighting; otherwise it is matched to states by index
// and need not sum to one. An empty input yields DefaultDifficulty.
func FromSkills(states []bkt.KnowledgeState, weights []float64) float64 {
	if len(states) == 0 {
		return DefaultDifficulty
	}

	useWeights := len(weights) == len(states)
	if useWeights {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if total <= 0 {
			useWeights = false
		}
	}

	var sum, total float64
	for i, s := range states {
		w := 1.0
		if useWeights {
			w = weights[i]
		}
		sum += s.PKnown * w
		total += w
	}
	return MasteryToDifficulty(sum / total)
}

// Clamp bounds v to [MinDifficulty, MaxDifficulty]. NaN maps to
// DefaultDifficulty.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultDifficulty
	}
	if v < MinDifficulty {
		return MinDifficulty
	}
	if v > MaxDifficulty {
		return MaxDifficulty
	}
	return v
}

// Valid reports whether v is already a legal difficulty.
func Valid(v float64) bool {
	return v >= MinDifficulty && v <= MaxDifficulty
}
