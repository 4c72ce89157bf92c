package knowledge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/cache"
	"github.com/abhisek/skilltune/internal/logging"
	"github.com/abhisek/skilltune/internal/remote"
	"github.com/abhisek/skilltune/internal/skillmap"
)

// DefaultPersistTimeout bounds background remote writes.
const DefaultPersistTimeout = 5 * time.Second

// Nudger is told when a state was committed locally but not remotely.
type Nudger interface {
	Nudge()
}

// Store is the layered knowledge repository. Reads resolve remote, memory,
// Redis (when configured), then durable storage. Concurrent updates to one
// key are serialized so no observation is lost.
type Store struct {
	remote   Remote
	memory   *cache.Memory[Key, bkt.KnowledgeState]
	redis    *cache.RedisJSON[bkt.KnowledgeState]
	durable  Durable
	resolver *Resolver
	locks    cache.KeyedMutex[Key]
	syncer   Nudger
	log      logrus.FieldLogger
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithRemote enables the remote tier and remote write-through.
func WithRemote(r Remote) Option {
	return func(s *Store) { s.remote = r }
}

// WithDurable enables the durable tier.
func WithDurable(d Durable) Option {
	return func(s *Store) { s.durable = d }
}

// WithRedis enables the shared Redis tier.
func WithRedis(r *cache.RedisJSON[bkt.KnowledgeState]) Option {
	return func(s *Store) { s.redis = r }
}

// WithSyncer sets who is nudged after a failed remote write.
func WithSyncer(n Nudger) Option {
	return func(s *Store) { s.syncer = n }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithTimeout bounds each remote read and background write.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store. Without options it is memory only.
func NewStore(opts ...Option) *Store {
	s := &Store{
		memory:  cache.NewMemory[Key, bkt.KnowledgeState](),
		log:     logging.Discard(),
		timeout: DefaultPersistTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var tiers []Tier
	if s.remote != nil {
		tiers = append(tiers, RemoteTier{API: s.remote, Timeout: s.timeout})
	}
	tiers = append(tiers, MemoryTier{Cache: s.memory})
	if s.redis != nil {
		tiers = append(tiers, RedisTier{Cache: s.redis})
	}
	if s.durable != nil {
		tiers = append(tiers, DurableTier{Store: s.durable})
	}
	s.resolver = NewResolver(s.log, tiers...)
	return s
}

var _ Repository = (*Store)(nil)

// Resolver exposes the tier chain, mainly for diagnostics.
func (s *Store) Resolver() *Resolver {
	return s.resolver
}

// Get returns the state for key, initializing it from the skill's default
// parameters when no tier holds it.
func (s *Store) Get(ctx context.Context, key Key) bkt.KnowledgeState {
	unlock := s.locks.Lock(key)
	defer unlock()
	return s.get(ctx, key)
}

// get resolves key. Callers hold the key lock.
func (s *Store) get(ctx context.Context, key Key) bkt.KnowledgeState {
	st, tier, err := s.resolver.Resolve(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrMiss):
		return s.initialize(key)
	default:
		// Canceled mid-resolution: answer with defaults but cache nothing,
		// since a slower tier may still hold real progress.
		return bkt.New(key.StudentID, key.SkillID, skillmap.Params(key.SkillID), s.now())
	}

	switch tier {
	case "remote":
		st = s.reconcile(ctx, key, st)
	case "redis", "durable":
		s.memory.SetIf(key, st.Clone(), notOlder(st))
		if tier == "durable" {
			s.setRedis(ctx, st)
		}
	}
	return st.Clone()
}

// reconcile merges a remote hit with the local copies. The newest
// version wins; a local version ahead of the remote one is kept and queued
// for sync.
func (s *Store) reconcile(ctx context.Context, key Key, remoteSt bkt.KnowledgeState) bkt.KnowledgeState {
	if cur, ok := s.memory.Get(key); ok && cur.NewerThan(remoteSt) {
		s.nudge()
		return cur
	}
	if s.durable != nil {
		applied, err := s.durable.SaveKnowledge(ctx, remoteSt, true)
		if err != nil {
			s.log.WithError(err).WithField("key", key.String()).Warn("durable knowledge write failed")
		} else if !applied {
			if local, ok, err := s.durable.LoadKnowledge(ctx, key.StudentID, key.SkillID); err == nil && ok && local.NewerThan(remoteSt) {
				s.memory.Set(key, local.Clone())
				s.nudge()
				return local
			}
		}
	}
	s.memory.Set(key, remoteSt.Clone())
	s.setRedis(ctx, remoteSt)
	return remoteSt
}

// initialize creates a fresh state, commits it locally and persists it
// remotely in the background.
func (s *Store) initialize(key Key) bkt.KnowledgeState {
	st := bkt.New(key.StudentID, key.SkillID, skillmap.Params(key.SkillID), s.now())
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.commitLocal(ctx, st)

	if s.remote != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			unlock := s.locks.Lock(key)
			defer unlock()
			if cur, ok := s.memory.Get(key); ok && cur.NewerThan(st) {
				return // an update already pushed a later version
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			defer cancel()
			if err := s.remote.SaveKnowledgeState(ctx, st); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"student": key.StudentID, "skill": key.SkillID,
				}).Warn("persisting new knowledge state failed")
				s.nudge()
				return
			}
			s.markSynced(ctx, st)
		}()
	}
	return st.Clone()
}

// Save stores st if it is not older than the cached version, then pushes it
// to the remote store.
func (s *Store) Save(ctx context.Context, st bkt.KnowledgeState) {
	if !st.Valid() {
		s.log.WithFields(logrus.Fields{"student": st.StudentID, "skill": st.SkillID}).
			Warn("refusing to save invalid knowledge state")
		return
	}
	key := KeyOf(st)
	unlock := s.locks.Lock(key)
	defer unlock()

	if cur, ok := s.memory.Get(key); ok && cur.NewerThan(st) {
		return
	}
	st = st.Clone()
	s.commitLocal(ctx, st)
	s.pushState(ctx, st, false)
}

// Update applies one answer to the state for key. The read-modify-write
// holds the key lock, so N concurrent updates append N observations.
func (s *Store) Update(ctx context.Context, key Key, correct bool) bkt.KnowledgeState {
	unlock := s.locks.Lock(key)
	defer unlock()

	cur, ok := s.memory.Get(key)
	if !ok {
		cur = s.get(ctx, key)
	}
	next := bkt.Update(cur, correct, s.now())
	s.commitLocal(ctx, next)
	s.pushState(ctx, next, true)
	return next.Clone()
}

// Replay applies a sequence of answers under one hold of the key lock and
// commits the result locally. With a syncer the remote push is left to it;
// otherwise the final state is pushed once, without per-answer observations.
func (s *Store) Replay(ctx context.Context, key Key, answers []bool) bkt.KnowledgeState {
	unlock := s.locks.Lock(key)
	defer unlock()

	cur, ok := s.memory.Get(key)
	if !ok {
		cur = s.get(ctx, key)
	}
	next := bkt.Replay(cur, answers, s.now())
	s.commitLocal(ctx, next)
	if s.syncer != nil && s.durable != nil {
		s.nudge()
	} else {
		s.pushState(ctx, next, false)
	}
	return next.Clone()
}

// Reset drops every cached state. The remote store is not touched.
func (s *Store) Reset(ctx context.Context) error {
	s.memory.Clear()
	var errs []error
	if s.redis != nil {
		if err := s.redis.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.durable != nil {
		n, err := s.durable.ResetKnowledge(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		s.log.WithField("rows", n).Info("knowledge states reset")
	}
	return errors.Join(errs...)
}

// Close waits for background remote writes to finish.
func (s *Store) Close() error {
	s.wg.Wait()
	return nil
}

// commitLocal writes st to memory, Redis and durable storage as unsynced.
func (s *Store) commitLocal(ctx context.Context, st bkt.KnowledgeState) {
	key := KeyOf(st)
	s.memory.Set(key, st.Clone())
	s.setRedis(ctx, st)
	if s.durable == nil {
		return
	}
	if _, err := s.durable.SaveKnowledge(ctx, st, false); err != nil {
		s.log.WithError(err).WithField("key", key.String()).Warn("durable knowledge write failed")
	}
}

// pushState sends st to the remote store. withObservation also posts the
// latest observation first. On failure the durable row stays unsynced and
// the syncer is nudged.
func (s *Store) pushState(ctx context.Context, st bkt.KnowledgeState, withObservation bool) {
	if s.remote == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields := logrus.Fields{"student": st.StudentID, "skill": st.SkillID}
	if withObservation {
		if obs, ok := remote.ObservationFromState(st); ok {
			if err := s.remote.PostObservation(ctx, obs); err != nil {
				s.log.WithError(err).WithFields(fields).Warn("posting observation failed")
			}
		}
	}
	if err := s.remote.SaveKnowledgeState(ctx, st); err != nil {
		s.log.WithError(err).WithFields(fields).Warn("remote knowledge update failed; kept locally")
		s.nudge()
		return
	}
	s.markSynced(ctx, st)
}

func (s *Store) markSynced(ctx context.Context, st bkt.KnowledgeState) {
	if s.durable == nil {
		return
	}
	if err := s.durable.MarkSynced(ctx, st); err != nil {
		s.log.WithError(err).WithField("key", KeyOf(st).String()).Warn("marking knowledge state synced failed")
	}
}

func (s *Store) setRedis(ctx context.Context, st bkt.KnowledgeState) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, KeyOf(st).String(), st); err != nil {
		s.log.WithError(err).WithField("key", KeyOf(st).String()).Debug("redis knowledge write failed")
	}
}

func (s *Store) nudge() {
	if s.syncer != nil {
		s.syncer.Nudge()
	}
}

// notOlder returns a SetIf predicate accepting st over any cached version
// that is not newer.
func notOlder(st bkt.KnowledgeState) func(bkt.KnowledgeState) bool {
	return func(cur bkt.KnowledgeState) bool { return !cur.NewerThan(st) }
}
