package remote

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/performance"
)

// LoggingAPI is a decorator that logs every remote call with its latency.
// Failures are logged at warning level; they never change the result.
type LoggingAPI struct {
	inner API
	log   logrus.FieldLogger
}

// WithLogging wraps api with call logging.
func WithLogging(api API, log logrus.FieldLogger) API {
	return &LoggingAPI{inner: api, log: log}
}

func (l *LoggingAPI) GetPerformance(ctx context.Context, studentID, gameID string) (performance.Record, error) {
	start := time.Now()
	rec, err := l.inner.GetPerformance(ctx, studentID, gameID)
	l.record("GET /performance", start, err, logrus.Fields{"student": studentID, "game": gameID})
	return rec, err
}

func (l *LoggingAPI) PutDifficulty(ctx context.Context, studentID, gameID string, value float64) (float64, error) {
	start := time.Now()
	out, err := l.inner.PutDifficulty(ctx, studentID, gameID, value)
	l.record("PUT /performance/difficulty", start, err, logrus.Fields{"student": studentID, "game": gameID, "difficulty": value})
	return out, err
}

func (l *LoggingAPI) PostInteraction(ctx context.Context, in InteractionPayload) (*float64, error) {
	start := time.Now()
	out, err := l.inner.PostInteraction(ctx, in)
	l.record("POST /game-interaction", start, err, logrus.Fields{"student": in.StudentID, "game": in.GameID})
	return out, err
}

func (l *LoggingAPI) GetKnowledgeState(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, error) {
	start := time.Now()
	s, err := l.inner.GetKnowledgeState(ctx, studentID, skillID)
	l.record("GET /knowledge-state", start, err, logrus.Fields{"student": studentID, "skill": skillID})
	return s, err
}

func (l *LoggingAPI) SaveKnowledgeState(ctx context.Context, state bkt.KnowledgeState) error {
	start := time.Now()
	err := l.inner.SaveKnowledgeState(ctx, state)
	l.record("POST /knowledge-state", start, err, logrus.Fields{"student": state.StudentID, "skill": state.SkillID})
	return err
}

func (l *LoggingAPI) PostObservation(ctx context.Context, obs ObservationPayload) error {
	start := time.Now()
	err := l.inner.PostObservation(ctx, obs)
	l.record("POST /knowledge-state/observation", start, err, logrus.Fields{"student": obs.StudentID, "skill": obs.SkillID})
	return err
}

func (l *LoggingAPI) record(endpoint string, start time.Time, err error, fields logrus.Fields) {
	entry := l.log.WithFields(fields).WithFields(logrus.Fields{
		"endpoint":   endpoint,
		"latency_ms": time.Since(start).Milliseconds(),
	})
	switch {
	case err == nil:
		entry.Debug("remote call succeeded")
	case errors.Is(err, ErrNotFound):
		entry.Debug("remote record not found")
	default:
		entry.WithError(err).Warn("remote call failed")
	}
}
