// Package performance owns per (student, game) interaction history and the
// difficulty currently in force for that game, independent of the BKT
// skill model.
package performance

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/skilltune/internal/difficulty"
)

// Key identifies one performance record.
type Key struct {
	StudentID string
	GameID    string
}

// String returns the storage form "{studentId}-{gameId}".
func (k Key) String() string {
	return k.StudentID + "-" + k.GameID
}

// Interaction is one finished game session. Score is normalized to [0, 1].
type Interaction struct {
	Timestamp         time.Time `json:"timestamp"`
	Score             float64   `json:"score"`
	TimeSpent         float64   `json:"timeSpent"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	Difficulty        float64   `json:"difficulty"`

	// Unreported marks a session recorded locally that the remote store has
	// not acknowledged. Only such sessions are added to a remote record.
	Unreported bool `json:"unreported,omitempty"`
}

// Record is the history and active difficulty for one (student, game).
type Record struct {
	Interactions      []Interaction `json:"interactions"`
	CurrentDifficulty float64       `json:"currentDifficulty"`
}

// NewRecord returns the record used on first access.
func NewRecord() Record {
	return Record{
		Interactions:      []Interaction{},
		CurrentDifficulty: difficulty.DefaultDifficulty,
	}
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.Interactions = make([]Interaction, len(r.Interactions))
	copy(out.Interactions, r.Interactions)
	return out
}

// Scores returns the normalized scores oldest first.
func (r Record) Scores() []float64 {
	out := make([]float64, len(r.Interactions))
	for i, in := range r.Interactions {
		out[i] = in.Score
	}
	return out
}

// merge combines a remote record with the local copy of the same key. The
// remote history is authoritative for reported sessions; unreported local
// sessions are added in timestamp order. History never shrinks: when the
// result would hold fewer sessions than the local copy, the local history
// is kept. keepDifficulty keeps the local difficulty for a write the remote
// store missed.
func merge(remote, local Record, keepDifficulty bool) Record {
	out := remote.Clone()
	for _, in := range local.Interactions {
		if in.Unreported {
			out.Interactions = append(out.Interactions, in)
		}
	}
	if len(out.Interactions) < len(local.Interactions) {
		out.Interactions = local.Clone().Interactions
	}
	sort.SliceStable(out.Interactions, func(i, j int) bool {
		return out.Interactions[i].Timestamp.Before(out.Interactions[j].Timestamp)
	})
	if keepDifficulty {
		out.CurrentDifficulty = local.CurrentDifficulty
	}
	return out
}

// DifficultyChange is published whenever a record's difficulty is set.
type DifficultyChange struct {
	Key        Key
	Previous   float64
	Difficulty float64
	At         time.Time
}

var guestPrefixes = []string{"guest-", "guest_", "anon-", "anonymous-"}

// IsGuest reports whether studentID lacks a stable identity. Guests are
// served from process memory only.
func IsGuest(studentID string) bool {
	id := strings.ToLower(strings.TrimSpace(studentID))
	switch id {
	case "", "undefined", "null", "guest", "anonymous":
		return true
	}
	for _, p := range guestPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// NewGuestID returns a fresh guest identity.
func NewGuestID() string {
	return "guest-" + uuid.NewString()
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

// normalize bounds the fields of an interaction before it is stored.
func normalize(in Interaction, now time.Time) Interaction {
	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	in.Timestamp = in.Timestamp.UTC()
	in.Score = clamp01(in.Score)
	in.Difficulty = difficulty.Clamp(in.Difficulty)
	if in.TimeSpent < 0 {
		in.TimeSpent = 0
	}
	if in.QuestionsAnswered < 0 {
		in.QuestionsAnswered = 0
	}
	return in
}
