package performance

import (
	"context"
	"time"

	"github.com/abhisek/skilltune/internal/cache"
	"github.com/abhisek/skilltune/internal/difficulty"
	"github.com/abhisek/skilltune/internal/events"
)

// Repository is the performance history store contract. Methods never fail:
// persistence problems are logged and the best available value returned.
type Repository interface {
	Get(ctx context.Context, key Key) Record
	AppendInteraction(ctx context.Context, key Key, in Interaction) Record
	SetDifficulty(ctx context.Context, key Key, value float64) float64

	// MarkReported records that the remote store acknowledged the session
	// appended at the given timestamp.
	MarkReported(ctx context.Context, key Key, at time.Time)

	Subscribe() (<-chan DifficultyChange, func())
}

// memory is the process-local core shared by Ephemeral and Store.
type memory struct {
	records *cache.Memory[Key, Record]
	locks   cache.KeyedMutex[Key]
	broker  *events.Broker[DifficultyChange]
	now     func() time.Time
}

func newMemory() *memory {
	return &memory{
		records: cache.NewMemory[Key, Record](),
		broker:  events.NewBroker[DifficultyChange](events.DefaultBuffer),
		now:     time.Now,
	}
}

func (m *memory) Subscribe() (<-chan DifficultyChange, func()) {
	return m.broker.Subscribe()
}

func (m *memory) publish(key Key, prev, next float64) {
	m.broker.Publish(DifficultyChange{Key: key, Previous: prev, Difficulty: next, At: m.now().UTC()})
}

// Ephemeral keeps records in process memory only. It is the store used for
// guest identities: nothing is read from or written to any durable or
// remote tier, and history is lost when the process exits.
type Ephemeral struct {
	*memory
}

// NewEphemeral creates an empty in-memory repository.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{memory: newMemory()}
}

var _ Repository = (*Ephemeral)(nil)

func (e *Ephemeral) Get(_ context.Context, key Key) Record {
	if rec, ok := e.records.Get(key); ok {
		return rec.Clone()
	}
	return NewRecord()
}

func (e *Ephemeral) AppendInteraction(_ context.Context, key Key, in Interaction) Record {
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, ok := e.records.Get(key)
	if !ok {
		rec = NewRecord()
	}
	rec = rec.Clone()
	rec.Interactions = append(rec.Interactions, normalize(in, e.now()))
	e.records.Set(key, rec)
	return rec.Clone()
}

func (e *Ephemeral) SetDifficulty(_ context.Context, key Key, value float64) float64 {
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, ok := e.records.Get(key)
	if !ok {
		rec = NewRecord()
	}
	prev := rec.CurrentDifficulty
	rec = rec.Clone()
	rec.CurrentDifficulty = difficulty.Clamp(value)
	e.records.Set(key, rec)
	e.publish(key, prev, rec.CurrentDifficulty)
	return rec.CurrentDifficulty
}

// MarkReported is a no-op: guest sessions are never reported.
func (e *Ephemeral) MarkReported(context.Context, Key, time.Time) {}
