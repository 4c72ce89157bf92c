package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/cache"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/remote"
)

// Tier is one source a Resolver consults. Load returns ErrMiss (possibly
// wrapped) when the tier does not hold key; any other error means the tier
// could not answer.
type Tier interface {
	Name() string
	Load(ctx context.Context, key Key) (bkt.KnowledgeState, error)
}

// Resolver asks each tier in order and returns the first hit.
type Resolver struct {
	tiers []Tier
	log   logrus.FieldLogger
}

// NewResolver creates a resolver over tiers, consulted in the given order.
func NewResolver(log logrus.FieldLogger, tiers ...Tier) *Resolver {
	if log == nil {
		log = logging.Discard()
	}
	return &Resolver{tiers: tiers, log: log}
}

// Resolve returns the state for key and the name of the tier that held it.
// It returns ErrMiss when every tier missed or failed.
func (r *Resolver) Resolve(ctx context.Context, key Key) (bkt.KnowledgeState, string, error) {
	for _, t := range r.tiers {
		st, err := t.Load(ctx, key)
		if err == nil {
			return st, t.Name(), nil
		}
		if !errors.Is(err, ErrMiss) {
			entry := r.log.WithError(err).WithFields(logrus.Fields{
				"tier": t.Name(), "student": key.StudentID, "skill": key.SkillID,
			})
			if errors.Is(err, context.Canceled) {
				entry.Debug("tier lookup canceled")
			} else {
				entry.Warn("tier unavailable; falling back")
			}
		}
		if ctx.Err() != nil {
			return bkt.KnowledgeState{}, "", ctx.Err()
		}
	}
	return bkt.KnowledgeState{}, "", ErrMiss
}

// Tiers returns the tier names in resolution order.
func (r *Resolver) Tiers() []string {
	names := make([]string, len(r.tiers))
	for i, t := range r.tiers {
		names[i] = t.Name()
	}
	return names
}

// Remote is the subset of the remote API the knowledge store needs.
type Remote interface {
	GetKnowledgeState(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, error)
	SaveKnowledgeState(ctx context.Context, st bkt.KnowledgeState) error
	PostObservation(ctx context.Context, obs remote.ObservationPayload) error
}

// RemoteTier reads from the remote learning store.
type RemoteTier struct {
	API     Remote
	Timeout time.Duration
}

func (t RemoteTier) Name() string { return "remote" }

func (t RemoteTier) Load(ctx context.Context, key Key) (bkt.KnowledgeState, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	st, err := t.API.GetKnowledgeState(ctx, key.StudentID, key.SkillID)
	if errors.Is(err, remote.ErrNotFound) {
		return bkt.KnowledgeState{}, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	if err != nil {
		return bkt.KnowledgeState{}, err
	}
	return st, nil
}

// MemoryTier reads from the process-local cache.
type MemoryTier struct {
	Cache *cache.Memory[Key, bkt.KnowledgeState]
}

func (t MemoryTier) Name() string { return "memory" }

func (t MemoryTier) Load(_ context.Context, key Key) (bkt.KnowledgeState, error) {
	st, ok := t.Cache.Get(key)
	if !ok {
		return bkt.KnowledgeState{}, ErrMiss
	}
	return st.Clone(), nil
}

// RedisTier reads from a shared Redis cache.
type RedisTier struct {
	Cache *cache.RedisJSON[bkt.KnowledgeState]
}

func (t RedisTier) Name() string { return "redis" }

func (t RedisTier) Load(ctx context.Context, key Key) (bkt.KnowledgeState, error) {
	st, ok, err := t.Cache.Get(ctx, key.String())
	if err != nil {
		return bkt.KnowledgeState{}, err
	}
	if !ok || !st.Valid() {
		return bkt.KnowledgeState{}, ErrMiss
	}
	if st.Observations == nil {
		st.Observations = []bkt.Observation{}
	}
	return st, nil
}

// Durable persists states across restarts and tracks which versions the
// remote store has confirmed.
type Durable interface {
	LoadKnowledge(ctx context.Context, studentID, skillID string) (bkt.KnowledgeState, bool, error)
	SaveKnowledge(ctx context.Context, st bkt.KnowledgeState, synced bool) (bool, error)
	MarkSynced(ctx context.Context, st bkt.KnowledgeState) error
	ResetKnowledge(ctx context.Context) (int64, error)
}

// DurableTier reads from durable storage.
type DurableTier struct {
	Store Durable
}

func (t DurableTier) Name() string { return "durable" }

func (t DurableTier) Load(ctx context.Context, key Key) (bkt.KnowledgeState, error) {
	st, ok, err := t.Store.LoadKnowledge(ctx, key.StudentID, key.SkillID)
	if err != nil {
		return bkt.KnowledgeState{}, err
	}
	if !ok {
		return bkt.KnowledgeState{}, ErrMiss
	}
	return st, nil
}
