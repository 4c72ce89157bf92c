// Package bkt implements Bayesian Knowledge Tracing: a per-skill estimate of
// the probability that a student has mastered the skill, refined after every
// correct or incorrect answer.
package bkt

import (
	"time"

	"github.com/abhisek/skilltune/internal/skillmap"
)

// Observation records one answer and its effect on the mastery estimate.
type Observation struct {
	Timestamp    time.Time `json:"timestamp"`
	Correct      bool      `json:"correct"`
	PKnownBefore float64   `json:"pKnownBefore"`
	PKnownAfter  float64   `json:"pKnownAfter"`
}

// KnowledgeState is the mastery estimate for one (student, skill) pair.
// Observations are append-only and kept in chronological order.
type KnowledgeState struct {
	StudentID    string               `json:"studentId"`
	SkillID      string               `json:"skillId"`
	PKnown       float64              `json:"pKnown"`
	Params       skillmap.SkillParams `json:"params"`
	Observations []Observation        `json:"observations"`
	LastUpdated  time.Time            `json:"lastUpdated"`
}

// New returns a freshly initialized state with pKnown set to the prior.
func New(studentID, skillID string, params skillmap.SkillParams, now time.Time) KnowledgeState {
	return KnowledgeState{
		StudentID:    studentID,
		SkillID:      skillID,
		PKnown:       params.PL0,
		Params:       params,
		Observations: []Observation{},
		LastUpdated:  now.UTC(),
	}
}

// Clone returns a deep copy. Callers get clones from stores so that local
// edits never leak into cached state.
func (s KnowledgeState) Clone() KnowledgeState {
	out := s
	out.Observations = make([]Observation, len(s.Observations))
	copy(out.Observations, s.Observations)
	return out
}

// Correct returns how many observations were correct.
func (s KnowledgeState) Correct() int {
	n := 0
	for _, o := range s.Observations {
		if o.Correct {
			n++
		}
	}
	return n
}

// Valid reports whether the state is usable: it names a student and skill,
// and pKnown and its parameters are probabilities.
func (s KnowledgeState) Valid() bool {
	return s.StudentID != "" && s.SkillID != "" &&
		s.PKnown >= 0 && s.PKnown <= 1 && s.Params.Valid()
}

// NewerThan reports whether s was updated after other. Used as the
// last-writer-wins rule by the caches.
func (s KnowledgeState) NewerThan(other KnowledgeState) bool {
	return s.LastUpdated.After(other.LastUpdated)
}
