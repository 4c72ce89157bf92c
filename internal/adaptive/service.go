// Package adaptive is the entry point game code talks to. It combines the
// knowledge store, the performance store and the difficulty controller into
// one DifficultyService, backed either by the remote learning store or by
// local storage only.
package adaptive

import (
	"context"
	"errors"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/syncer"
)

// ErrNoRemote is returned by operations that need the remote store when the
// service runs local-only.
var ErrNoRemote = errors.New("no remote store configured")

// ErrInvalidInteraction is returned for interactions missing a game.
var ErrInvalidInteraction = errors.New("invalid interaction")

// InteractionData is a finished game session as reported by the game.
// Score is on a 0-100 scale.
type InteractionData struct {
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

	// KnowledgeRecorded means every answer already went through
	// UpdateKnowledge, so only the performance history is updated.
	KnowledgeRecorded bool `json:"knowledgeRecorded,omitempty"`
}

// InteractionResult is what RecordInteraction hands back to the game.
type InteractionResult struct {
	NewDifficulty float64              `json:"newDifficulty"`
	SkillStates   []bkt.KnowledgeState `json:"skillStates"`
}

// Difficulty sources reported by StartSession.
const (
	SourceAdaptive = "adaptive"
	SourceMastery  = "mastery"
)

// SessionStart describes the difficulty a new session should use.
type SessionStart struct {
	StudentID    string               `json:"studentId"`
	GameID       string               `json:"gameId"`
	Difficulty   float64              `json:"difficulty"`
	Source       string               `json:"source"`
	Interactions int                  `json:"interactions"`
	Skills       []bkt.KnowledgeState `json:"skills"`
}

// DifficultyService is the API exposed to games. Apart from input
// validation, nothing here fails: remote and storage problems degrade to
// cached or default values.
type DifficultyService interface {
	GetKnowledgeState(ctx context.Context, studentID, skillID string) bkt.KnowledgeState
	UpdateKnowledge(ctx context.Context, studentID, skillID string, correct bool) bkt.KnowledgeState
	GetAdaptiveDifficulty(ctx context.Context, studentID, gameID string) float64
	RecordInteraction(ctx context.Context, in InteractionData) (InteractionResult, error)
	UpdateDifficultySettings(ctx context.Context, studentID, gameID string, value float64) float64
	ResetAllKnowledgeStates(ctx context.Context) error

	StartSession(ctx context.Context, studentID, gameID string) SessionStart
	SkillDifficulty(ctx context.Context, studentID, gameID string) float64
	GameSkills(ctx context.Context, studentID, gameID string) []bkt.KnowledgeState
	PerformanceRecord(ctx context.Context, studentID, gameID string) performance.Record
	NewSessionTuner(ctx context.Context, studentID, gameID string) *difficulty.SessionTuner
	SubscribeDifficulty(studentID string) (<-chan performance.DifficultyChange, func())
	SyncOfflineStates(ctx context.Context) (syncer.Result, error)
	Mode() string

	Close() error
}
