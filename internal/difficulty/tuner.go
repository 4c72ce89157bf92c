package difficulty

import (
	"context"
	"sync"
)

// In-session adjustments are larger than between-session ones.
const (
	StrugglingDrop = 0.2
	ExcellingBoost = 0.15
	tunerWindow    = 2
)

// Trend classifies the last answers of an active session.
type Trend string

const (
	TrendSteady     Trend = "steady"
	TrendStruggling Trend = "struggling"
	TrendExcelling  Trend = "excelling"
)

// Encourager produces a short message for a student who is struggling.
type Encourager interface {
	Encourage(ctx context.Context, topic string) string
}

// SetFunc persists a new difficulty and returns the value actually stored.
type SetFunc func(ctx context.Context, difficulty float64) float64

// TunerResult describes the outcome of one answer.
type TunerResult struct {
	Difficulty float64
	Adjusted   bool
	Trend      Trend
	Message    string
}

// SessionTuner micro-adjusts difficulty while a game is in progress. It
// watches the last two answers: two misses lower difficulty and produce an
// encouragement message, two hits raise it. The window restarts after each
// adjustment.
type SessionTuner struct {
	mu         sync.Mutex
	topic      string
	difficulty float64
	recent     []bool
	set        SetFunc
	encourager Encourager
}

// NewSessionTuner creates a tuner starting at difficulty. set may be nil
// when the caller persists difficulty itself; encourager may be nil.
func NewSessionTuner(topic string, start float64, set SetFunc, encourager Encourager) *SessionTuner {
	return &SessionTuner{
		topic:      topic,
		difficulty: Clamp(start),
		set:        set,
		encourager: encourager,
	}
}

// Difficulty returns the current in-session difficulty.
func (t *SessionTuner) Difficulty() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.difficulty
}

// Record registers one answer and applies any adjustment it triggers.
func (t *SessionTuner) Record(ctx context.Context, correct bool) TunerResult {
	t.mu.Lock()
	t.recent = append(t.recent, correct)
	if len(t.recent) > tunerWindow {
		t.recent = t.recent[len(t.recent)-tunerWindow:]
	}

	trend := classify(t.recent)
	res := TunerResult{Difficulty: t.difficulty, Trend: trend}

	switch trend {
	case TrendStruggling:
		res.Difficulty = Clamp(t.difficulty - StrugglingDrop)
	case TrendExcelling:
		res.Difficulty = Clamp(t.difficulty + ExcellingBoost)
	default:
		t.mu.Unlock()
		return res
	}

	t.recent = t.recent[:0]
	res.Adjusted = res.Difficulty != t.difficulty
	t.difficulty = res.Difficulty
	set, enc := t.set, t.encourager
	t.mu.Unlock()

	if set != nil && res.Adjusted {
		stored := set(ctx, res.Difficulty)
		t.mu.Lock()
		t.difficulty = stored
		t.mu.Unlock()
		res.Difficulty = stored
	}
	if trend == TrendStruggling && enc != nil {
		res.Message = enc.Encourage(ctx, t.topic)
	}
	return res
}

func classify(recent []bool) Trend {
	if len(recent) < tunerWindow {
		return TrendSteady
	}
	hits := 0
	for _, c := range recent {
		if c {
			hits++
		}
	}
	switch hits {
	case 0:
		return TrendStruggling
	case tunerWindow:
		return TrendExcelling
	}
	return TrendSteady
}
