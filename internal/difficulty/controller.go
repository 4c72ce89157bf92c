package difficulty

import (
	"fmt"
	"math"
)

// lowScoreMargin is how far below TargetSuccessRate a score must fall
// before difficulty is lowered.
const lowScoreMargin = 0.3

// NextDifficulty nudges current toward the target success rate using a
// single normalized score in [0, 1]:
//
//   - above TargetSuccessRate: +LearningRate/2
//   - below TargetSuccessRate-0.3: -LearningRate/2
//   - otherwise: unchanged
//
// The result is clamped to [MinDifficulty, MaxDifficulty].
func NextDifficulty(score, current float64) float64 {
	return Clamp(current + step(score, LearningRate/2))
}

func step(score, size float64) float64 {
	switch {
	case score > TargetSuccessRate:
		return size
	case score < TargetSuccessRate-lowScoreMargin:
		return -size
	default:
		return 0
	}
}

// Policy selects how a Controller reacts to a finished session.
type Policy string

const (
	// PolicyStep reacts to the latest score only.
	PolicyStep Policy = "step"
	// PolicyWeighted reacts to a recency-weighted score over the whole
	// history and damps its step until MinInteractions scores exist.
	PolicyWeighted Policy = "weighted"
)

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyStep:
		return PolicyStep, nil
	case PolicyWeighted:
		return PolicyWeighted, nil
	}
	return "", fmt.Errorf("unknown difficulty policy: %q", s)
}

// Controller computes between-session difficulty changes.
type Controller struct {
	Policy Policy
}

// NewController returns a controller using policy.
func NewController(policy Policy) Controller {
	return Controller{Policy: policy}
}

// Next returns the difficulty for the next session. scores holds normalized
// scores oldest first and must include the session just finished.
func (c Controller) Next(scores []float64, current float64) float64 {
	if len(scores) == 0 {
		return Clamp(current)
	}
	if c.Policy != PolicyWeighted {
		return NextDifficulty(scores[len(scores)-1], current)
	}

	damping := math.Min(1, float64(len(scores))/MinInteractions)
	return Clamp(current + step(WeightedScore(scores), LearningRate/2*damping))
}

// WeightedScore averages scores (oldest first) giving the newest weight 1
// and each older score RecencyWeight times the weight of the next newer one.
func WeightedScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum, total float64
	w := 1.0
	for i := len(scores) - 1; i >= 0; i-- {
		sum += scores[i] * w
		total += w
		w *= RecencyWeight
	}
	return sum / total
}
