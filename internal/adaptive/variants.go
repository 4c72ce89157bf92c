package adaptive

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/skilltune/internal/config"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/knowledge"
	"github.com/abhisek/skilltune/internal/remote"
	"github.com/abhisek/skilltune/internal/syncer"
)

// RemoteBackedService reads through and writes to the remote learning
// store, keeping local tiers as fallbacks. Writes the remote store missed
// are pushed later by the sync coordinator.
type RemoteBackedService struct {
	*engine
	api        remote.API
	kstore     *knowledge.Store
	sync       *syncer.Coordinator
	stopSync   context.CancelFunc
	closeExtra []func() error
}

var _ DifficultyService = (*RemoteBackedService)(nil)

func (s *RemoteBackedService) Mode() string { return config.ModeRemote }

// RecordInteraction records the session locally, updates the BKT state of
// every skill involved and reports it to the remote store, whose suggested
// difficulty wins when it sends a valid one.
func (s *RemoteBackedService) RecordInteraction(ctx context.Context, in InteractionData) (InteractionResult, error) {
	return s.record(ctx, in, s.postInteraction)
}

func (s *RemoteBackedService) postInteraction(ctx context.Context, in InteractionData) (*float64, bool) {
	suggested, err := s.api.PostInteraction(ctx, remote.InteractionPayload{
		StudentID:         in.StudentID,
		GameID:            in.GameID,
		Score:             in.Score,
		TimeSpent:         in.TimeSpent,
		CompletedLevel:    in.CompletedLevel,
		TotalLevels:       in.TotalLevels,
		Difficulty:        in.Difficulty,
		SkillsApplied:     in.SkillsApplied,
		QuestionsAnswered: in.QuestionsAnswered,
		CorrectAnswers:    in.CorrectAnswers,
	})
	if err != nil {
		// Already logged by the logging decorator.
		return nil, false
	}
	if suggested == nil || !difficulty.Valid(*suggested) {
		return nil, true
	}
	return suggested, true
}

// SyncOfflineStates pushes knowledge states the remote store has not
// confirmed yet.
func (s *RemoteBackedService) SyncOfflineStates(ctx context.Context) (syncer.Result, error) {
	if s.sync == nil {
		return syncer.Result{}, fmt.Errorf("%w: no durable storage to sync from", ErrNoRemote)
	}
	return s.sync.SyncOfflineStates(ctx)
}

// Close stops the sync loop and waits for background remote writes.
func (s *RemoteBackedService) Close() error {
	if s.stopSync != nil {
		s.stopSync()
		s.sync.Wait()
	}
	errs := []error{s.kstore.Close()}
	for _, c := range s.closeExtra {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// LocalOnlyService never contacts the remote store. Durable storage, when
// present, keeps progress across restarts; otherwise everything lives in
// memory.
type LocalOnlyService struct {
	*engine
	kstore     *knowledge.Store
	closeExtra []func() error
}

var _ DifficultyService = (*LocalOnlyService)(nil)

func (s *LocalOnlyService) Mode() string { return config.ModeLocal }

func (s *LocalOnlyService) RecordInteraction(ctx context.Context, in InteractionData) (InteractionResult, error) {
	return s.record(ctx, in, nil)
}

func (s *LocalOnlyService) SyncOfflineStates(context.Context) (syncer.Result, error) {
	return syncer.Result{}, ErrNoRemote
}

func (s *LocalOnlyService) Close() error {
	errs := []error{s.kstore.Close()}
	for _, c := range s.closeExtra {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
