package performance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/logging"
)

// ErrNotFound is matched by Remote errors meaning the remote store holds no
// record for the key.
var ErrNotFound = errors.New("performance: no remote record")

// Remote is the subset of the remote API the store needs.
type Remote interface {
	GetPerformance(ctx context.Context, studentID, gameID string) (Record, error)
	PutDifficulty(ctx context.Context, studentID, gameID string, value float64) (float64, error)
}

// Durable persists records across restarts.
type Durable interface {
	LoadPerformance(ctx context.Context, studentID, gameID string) (Record, bool, error)
	SavePerformance(ctx context.Context, studentID, gameID string, rec Record) error
}

// Store resolves records remote first, then from the memory cache, then
// from durable storage, then a fresh default. Writes go to memory and
// durable storage before the remote call so that a remote outage never
// loses local progress.
type Store struct {
	*memory
	remote  Remote
	durable Durable
	log     logrus.FieldLogger

	mu    sync.Mutex
	dirty map[Key]bool // local difficulty the remote store has not taken
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRemote enables the remote tier.
func WithRemote(r Remote) StoreOption {
	return func(s *Store) { s.remote = r }
}

// WithDurable enables the durable tier.
func WithDurable(d Durable) StoreOption {
	return func(s *Store) { s.durable = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) StoreOption {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store. With no options it behaves like Ephemeral.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		memory: newMemory(),
		log:    logging.Discard(),
		dirty:  make(map[Key]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Repository = (*Store)(nil)

func (s *Store) Get(ctx context.Context, key Key) Record {
	unlock := s.locks.Lock(key)
	defer unlock()
	return s.resolve(ctx, key)
}

// resolve reads the remote record and merges it with the local copy,
// falling back to the local copy alone. Callers hold the key lock.
func (s *Store) resolve(ctx context.Context, key Key) Record {
	if s.remote == nil {
		return s.local(ctx, key)
	}
	rec, err := s.remote.GetPerformance(ctx, key.StudentID, key.GameID)
	if err != nil {
		s.logFallback(key, err)
		return s.local(ctx, key)
	}
	merged := merge(rec, s.local(ctx, key), s.isDirty(key))
	s.records.Set(key, merged.Clone())
	s.saveDurable(ctx, key, merged)
	return merged
}

// local resolves key from memory, then durable storage, then a default.
func (s *Store) local(ctx context.Context, key Key) Record {
	if rec, ok := s.records.Get(key); ok {
		return rec.Clone()
	}
	if s.durable != nil {
		rec, ok, err := s.durable.LoadPerformance(ctx, key.StudentID, key.GameID)
		if err != nil {
			s.log.WithError(err).WithField("key", key.String()).Warn("durable performance read failed")
		}
		if ok {
			s.records.Set(key, rec.Clone())
			return rec.Clone()
		}
	}
	return NewRecord()
}

// current returns the record writes should build on: the cached copy when
// there is one, otherwise a full resolution. Callers hold the key lock.
func (s *Store) current(ctx context.Context, key Key) Record {
	if rec, ok := s.records.Get(key); ok {
		return rec.Clone()
	}
	return s.resolve(ctx, key)
}

func (s *Store) AppendInteraction(ctx context.Context, key Key, in Interaction) Record {
	unlock := s.locks.Lock(key)
	defer unlock()

	rec := s.current(ctx, key)
	in = normalize(in, s.now())
	// Unreported until the caller confirms the remote store has it.
	in.Unreported = s.remote != nil
	rec.Interactions = append(rec.Interactions, in)
	s.records.Set(key, rec.Clone())
	s.saveDurable(ctx, key, rec)
	return rec
}

func (s *Store) MarkReported(ctx context.Context, key Key, at time.Time) {
	unlock := s.locks.Lock(key)
	defer unlock()

	rec := s.current(ctx, key)
	for i := len(rec.Interactions) - 1; i >= 0; i-- {
		in := &rec.Interactions[i]
		if in.Unreported && in.Timestamp.Equal(at) {
			in.Unreported = false
			s.records.Set(key, rec.Clone())
			s.saveDurable(ctx, key, rec)
			return
		}
	}
}

func (s *Store) SetDifficulty(ctx context.Context, key Key, value float64) float64 {
	unlock := s.locks.Lock(key)
	defer unlock()

	rec := s.current(ctx, key)
	prev := rec.CurrentDifficulty
	rec.CurrentDifficulty = difficulty.Clamp(value)

	if s.remote != nil {
		stored, err := s.remote.PutDifficulty(ctx, key.StudentID, key.GameID, rec.CurrentDifficulty)
		if err != nil {
			// The local value wins over the remote one until a write lands.
			s.setDirty(key, true)
			s.log.WithError(err).WithFields(logrus.Fields{
				"student": key.StudentID, "game": key.GameID,
			}).Warn("remote difficulty update failed; keeping local value")
		} else {
			s.setDirty(key, false)
			rec.CurrentDifficulty = difficulty.Clamp(stored)
		}
	}

	s.records.Set(key, rec.Clone())
	s.saveDurable(ctx, key, rec)
	s.publish(key, prev, rec.CurrentDifficulty)
	return rec.CurrentDifficulty
}

func (s *Store) saveDurable(ctx context.Context, key Key, rec Record) {
	if s.durable == nil {
		return
	}
	if err := s.durable.SavePerformance(ctx, key.StudentID, key.GameID, rec); err != nil {
		// Storage failures degrade to memory-only for this record.
		s.log.WithError(err).WithField("key", key.String()).Warn("durable performance write failed")
	}
}

func (s *Store) logFallback(key Key, err error) {
	entry := s.log.WithFields(logrus.Fields{"student": key.StudentID, "game": key.GameID})
	switch {
	case errors.Is(err, context.Canceled):
		entry.Debug("performance fetch canceled; using local copy")
	case errors.Is(err, ErrNotFound):
		entry.Debug("no remote performance record; using local copy")
	default:
		entry.WithError(err).Warn("remote performance unavailable; using local copy")
	}
}

func (s *Store) isDirty(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty[key]
}

func (s *Store) setDirty(key Key, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.dirty[key] = true
	} else {
		delete(s.dirty, key)
	}
}
