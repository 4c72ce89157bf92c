package adaptive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/events"
	"github.com/abhisek/skilltune/internal/knowledge"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/skillmap"
)

// maxObservationsPerInteraction caps the BKT updates one interaction can
// trigger per skill.
const maxObservationsPerInteraction = 100

// engine holds the logic shared by both service variants. Guests are
// routed to ephemeral stores so they never touch durable or remote storage.
type engine struct {
	knowledge      knowledge.Repository
	perf           performance.Repository
	guestKnowledge *knowledge.Ephemeral
	guestPerf      *performance.Ephemeral
	controller     difficulty.Controller
	encourager     difficulty.Encourager
	log            logrus.FieldLogger
}

func newEngine(k knowledge.Repository, p performance.Repository, c difficulty.Controller, enc difficulty.Encourager, log logrus.FieldLogger) *engine {
	return &engine{
		knowledge:      k,
		perf:           p,
		guestKnowledge: knowledge.NewEphemeral(),
		guestPerf:      performance.NewEphemeral(),
		controller:     c,
		encourager:     enc,
		log:            log,
	}
}

func (e *engine) knowledgeFor(studentID string) knowledge.Repository {
	if performance.IsGuest(studentID) {
		return e.guestKnowledge
	}
	return e.knowledge
}

func (e *engine) perfFor(studentID string) performance.Repository {
	if performance.IsGuest(studentID) {
		return e.guestPerf
	}
	return e.perf
}

func (e *engine) GetKnowledgeState(ctx context.Context, studentID, skillID string) bkt.KnowledgeState {
	return e.knowledgeFor(studentID).Get(ctx, knowledge.Key{StudentID: studentID, SkillID: skillID})
}

func (e *engine) UpdateKnowledge(ctx context.Context, studentID, skillID string, correct bool) bkt.KnowledgeState {
	return e.knowledgeFor(studentID).Update(ctx, knowledge.Key{StudentID: studentID, SkillID: skillID}, correct)
}

func (e *engine) GetAdaptiveDifficulty(ctx context.Context, studentID, gameID string) float64 {
	return e.PerformanceRecord(ctx, studentID, gameID).CurrentDifficulty
}

func (e *engine) PerformanceRecord(ctx context.Context, studentID, gameID string) performance.Record {
	return e.perfFor(studentID).Get(ctx, performance.Key{StudentID: studentID, GameID: gameID})
}

func (e *engine) UpdateDifficultySettings(ctx context.Context, studentID, gameID string, value float64) float64 {
	return e.perfFor(studentID).SetDifficulty(ctx, performance.Key{StudentID: studentID, GameID: gameID}, value)
}

func (e *engine) ResetAllKnowledgeStates(ctx context.Context) error {
	var errs []error
	if err := e.guestKnowledge.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reset guest knowledge states: %w", err))
	}
	if err := e.knowledge.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reset knowledge states: %w", err))
	}
	return errors.Join(errs...)
}

// GameSkills returns the current state of every skill gameID exercises.
func (e *engine) GameSkills(ctx context.Context, studentID, gameID string) []bkt.KnowledgeState {
	skills := skillmap.SkillsForGame(gameID)
	out := make([]bkt.KnowledgeState, 0, len(skills))
	for _, skill := range skills {
		out = append(out, e.GetKnowledgeState(ctx, studentID, skill))
	}
	return out
}

func (e *engine) SkillDifficulty(ctx context.Context, studentID, gameID string) float64 {
	return difficulty.FromSkills(e.GameSkills(ctx, studentID, gameID), nil)
}

// StartSession picks the opening difficulty: the adaptive value once the
// game has enough history, the mastery-derived value before that.
func (e *engine) StartSession(ctx context.Context, studentID, gameID string) SessionStart {
	rec := e.PerformanceRecord(ctx, studentID, gameID)
	skills := e.GameSkills(ctx, studentID, gameID)
	start := SessionStart{
		StudentID:    studentID,
		GameID:       gameID,
		Interactions: len(rec.Interactions),
		Skills:       skills,
	}
	if len(rec.Interactions) >= difficulty.MinInteractions {
		start.Difficulty = difficulty.Clamp(rec.CurrentDifficulty)
		start.Source = SourceAdaptive
	} else {
		start.Difficulty = difficulty.FromSkills(skills, nil)
		start.Source = SourceMastery
	}
	return start
}

func (e *engine) NewSessionTuner(ctx context.Context, studentID, gameID string) *difficulty.SessionTuner {
	start := e.StartSession(ctx, studentID, gameID)
	key := performance.Key{StudentID: studentID, GameID: gameID}
	repo := e.perfFor(studentID)
	set := func(ctx context.Context, d float64) float64 {
		return repo.SetDifficulty(ctx, key, d)
	}
	topic := gameID
	if g, err := skillmap.GetGame(gameID); err == nil {
		topic = g.Name
	}
	return difficulty.NewSessionTuner(topic, start.Difficulty, set, e.encourager)
}

// SubscribeDifficulty streams difficulty changes for studentID only.
func (e *engine) SubscribeDifficulty(studentID string) (<-chan performance.DifficultyChange, func()) {
	ch, cancel := e.perfFor(studentID).Subscribe()
	mine := events.Filter(ch, func(c performance.DifficultyChange) bool {
		return c.Key.StudentID == studentID
	})
	return mine, cancel
}

// suggestFunc reports an interaction to the remote store. delivered is true
// once the remote store accepted it; suggested is nil when the server
// offered no valid difficulty.
type suggestFunc func(ctx context.Context, in InteractionData) (suggested *float64, delivered bool)

// record implements RecordInteraction for both variants.
func (e *engine) record(ctx context.Context, in InteractionData, suggest suggestFunc) (InteractionResult, error) {
	in.GameID = strings.TrimSpace(in.GameID)
	if in.GameID == "" {
		return InteractionResult{}, fmt.Errorf("%w: missing gameId", ErrInvalidInteraction)
	}

	key := performance.Key{StudentID: in.StudentID, GameID: in.GameID}
	repo := e.perfFor(in.StudentID)
	score := in.Score / 100

	played := in.Difficulty
	if !difficulty.Valid(played) {
		played = repo.Get(ctx, key).CurrentDifficulty
	}
	rec := repo.AppendInteraction(ctx, key, performance.Interaction{
		Score:             score,
		TimeSpent:         in.TimeSpent,
		QuestionsAnswered: in.QuestionsAnswered,
		Difficulty:        played,
	})

	skills := in.SkillsApplied
	if len(skills) == 0 {
		skills = skillmap.SkillsForGame(in.GameID)
	}
	appended := rec.Interactions[len(rec.Interactions)-1]
	answers := answerSequence(in, appended.Score)
	kr := e.knowledgeFor(in.StudentID)
	states := make([]bkt.KnowledgeState, 0, len(skills))
	for _, skill := range skills {
		skey := knowledge.Key{StudentID: in.StudentID, SkillID: skill}
		if in.KnowledgeRecorded {
			states = append(states, kr.Get(ctx, skey))
			continue
		}
		states = append(states, kr.Replay(ctx, skey, answers))
	}

	next := e.controller.Next(rec.Scores(), rec.CurrentDifficulty)
	if suggest != nil && !performance.IsGuest(in.StudentID) {
		suggested, delivered := suggest(ctx, in)
		if delivered {
			repo.MarkReported(ctx, key, appended.Timestamp)
		}
		if suggested != nil {
			next = difficulty.Clamp(*suggested)
		}
	}
	stored := repo.SetDifficulty(ctx, key, next)

	e.log.WithFields(logrus.Fields{
		"student": in.StudentID, "game": in.GameID,
		"score": score, "difficulty": stored, "skills": len(states),
	}).Debug("interaction recorded")
	return InteractionResult{NewDifficulty: stored, SkillStates: states}, nil
}

// answerSequence expands an interaction into per-question outcomes: the
// correct answers first, then the misses. Without a question count the
// session counts as one answer, correct when the score met the target.
func answerSequence(in InteractionData, score float64) []bool {
	q := in.QuestionsAnswered
	if q <= 0 {
		return []bool{score >= difficulty.TargetSuccessRate}
	}
	c := min(max(in.CorrectAnswers, 0), q)
	if q > maxObservationsPerInteraction {
		c = c * maxObservationsPerInteraction / q
		q = maxObservationsPerInteraction
	}
	out := make([]bool, q)
	for i := range c {
		out[i] = true
	}
	return out
}
