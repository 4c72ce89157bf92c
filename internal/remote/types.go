package remote

import (
	"context"
	"time"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/performance"
)

// API is the remote learning store as seen by skilltune. Client implements
// it over HTTP; decorators add retries and logging.
type API interface {
	// GetPerformance fetches GET /performance/{studentId}/{gameId}.
	GetPerformance(ctx context.Context, studentID, gameID string) (performance.Record, error)

	// PutDifficulty sends PUT /performance/{studentId}/{gameId}/difficulty
	// and returns the difficulty the server stored.
	PutDifficulty(ctx context.Context, studentID, gameID string, difficulty float64) (float64, error)

	// PostInteraction sends POST /game-interaction. The returned pointer is
	// nil when the server did not suggest a new difficulty.
	PostInteraction(ctx context.Context, in InteractionPayload) (*float64, error)

	// GetKnowledgeState fetches GET /knowledge-state/{studentId}/{skillId}.
	GetKnowledgeState(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, error)

	// SaveKnowledgeState upserts via POST /knowledge-state.
	SaveKnowledgeState(ctx context.Context, state bkt.KnowledgeState) error

	// PostObservation sends POST /knowledge-state/observation.
	PostObservation(ctx context.Context, obs ObservationPayload) error
}

// InteractionPayload is the body of POST /game-interaction. Score is 0-100.
type InteractionPayload struct {
	StudentID         string   `json:"studentId"`
	GameID            string   `json:"gameId"`
	Score             float64  `json:"score"`
	TimeSpent         float64  `json:"timeSpent"`
	CompletedLevel    int      `json:"completedLevel"`
	TotalLevels       int      `json:"totalLevels"`
	Difficulty        float64  `json:"difficulty"`
	SkillsApplied     []string `json:"skillsApplied"`
	QuestionsAnswered int      `json:"questionsAnswered"`
	CorrectAnswers    int      `json:"correctAnswers"`
}

// ObservationPayload is the body of POST /knowledge-state/observation.
type ObservationPayload struct {
	StudentID    string    `json:"studentId"`
	SkillID      string    `json:"skillId"`
	Correct      bool      `json:"correct"`
	PKnownBefore float64   `json:"pKnownBefore"`
	PKnownAfter  float64   `json:"pKnownAfter"`
	Timestamp    time.Time `json:"timestamp"`
}

// ObservationFromState builds the payload for the latest observation of s.
// ok is false when s has no observations.
func ObservationFromState(s bkt.KnowledgeState) (ObservationPayload, bool) {
	if len(s.Observations) == 0 {
		return ObservationPayload{}, false
	}
	o := s.Observations[len(s.Observations)-1]
	return ObservationPayload{
		StudentID:    s.StudentID,
		SkillID:      s.SkillID,
		Correct:      o.Correct,
		PKnownBefore: o.PKnownBefore,
		PKnownAfter:  o.PKnownAfter,
		Timestamp:    o.Timestamp,
	}, true
}

type performanceResponse struct {
	Interactions      []performance.Interaction `json:"interactions"`
	CurrentDifficulty *float64                  `json:"currentDifficulty"`
}

type difficultyRequest struct {
	Difficulty float64 `json:"difficulty"`
}

type difficultyResponse struct {
	Success       *bool    `json:"success,omitempty"`
	NewDifficulty *float64 `json:"newDifficulty,omitempty"`
	Difficulty    *float64 `json:"difficulty,omitempty"`
}

type interactionResponse struct {
	NewDifficulty *float64 `json:"newDifficulty,omitempty"`
}
