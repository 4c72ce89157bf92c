package bkt

import "time"

// Update applies one observation to state and returns the new state. The
// input is not modified.
//
// The posterior is computed with Bayes' rule using the slip and guess
// parameters, then the learning transition pT is applied:
//
//	pKnownNew = pKnownAdjusted + (1 - pKnownAdjusted) * pT
func Update(state KnowledgeState, correct bool, now time.Time) KnowledgeState {
	prior := state.PKnown
	p := state.Params

	adjusted := Posterior(prior, p.PS, p.PG, correct)
	next := clamp01(adjusted + (1-adjusted)*p.PT)

	out := state.Clone()
	out.PKnown = next
	out.LastUpdated = now.UTC()
	out.Observations = append(out.Observations, Observation{
		Timestamp:    now.UTC(),
		Correct:      correct,
		PKnownBefore: prior,
		PKnownAfter:  next,
	})
	return out
}

// Posterior returns P(known | observation) before the learning transition.
// A zero-probability observation leaves the prior unchanged.
func Posterior(pKnown, pSlip, pGuess float64, correct bool) float64 {
	var givenKnown, givenNotKnown float64
	if correct {
		givenKnown = 1 - pSlip
		givenNotKnown = pGuess
	} else {
		givenKnown = pSlip
		givenNotKnown = 1 - pGuess
	}

	evidence := givenKnown*pKnown + givenNotKnown*(1-pKnown)
	if evidence <= 0 {
		return clamp01(pKnown)
	}
	return clamp01(givenKnown * pKnown / evidence)
}

// Replay applies a sequence of answers in order.
func Replay(state KnowledgeState, answers []bool, now time.Time) KnowledgeState {
	for _, correct := range answers {
		state = Update(state, correct, now)
	}
	return state
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
