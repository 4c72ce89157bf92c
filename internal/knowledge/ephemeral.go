package knowledge

import (
	"context"
	"time"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/cache"
	"github.com/abhisek/skilltune/internal/skillmap"
)

// Ephemeral keeps states in process memory only. Guests use it so that
// nothing about them reaches durable or remote storage.
type Ephemeral struct {
	states *cache.Memory[Key, bkt.KnowledgeState]
	locks  cache.KeyedMutex[Key]
	now    func() time.Time
}

// NewEphemeral creates an empty in-memory repository.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{
		states: cache.NewMemory[Key, bkt.KnowledgeState](),
		now:    time.Now,
	}
}

var _ Repository = (*Ephemeral)(nil)

func (e *Ephemeral) Get(_ context.Context, key Key) bkt.KnowledgeState {
	unlock := e.locks.Lock(key)
	defer unlock()
	return e.get(key).Clone()
}

func (e *Ephemeral) get(key Key) bkt.KnowledgeState {
	if st, ok := e.states.Get(key); ok {
		return st
	}
	st := bkt.New(key.StudentID, key.SkillID, skillmap.Params(key.SkillID), e.now())
	e.states.Set(key, st)
	return st
}

func (e *Ephemeral) Save(_ context.Context, st bkt.KnowledgeState) {
	if !st.Valid() {
		return
	}
	st = st.Clone()
	e.states.SetIf(KeyOf(st), st, notOlder(st))
}

func (e *Ephemeral) Update(_ context.Context, key Key, correct bool) bkt.KnowledgeState {
	unlock := e.locks.Lock(key)
	defer unlock()

	next := bkt.Update(e.get(key), correct, e.now())
	e.states.Set(key, next.Clone())
	return next
}

func (e *Ephemeral) Replay(_ context.Context, key Key, answers []bool) bkt.KnowledgeState {
	unlock := e.locks.Lock(key)
	defer unlock()

	next := bkt.Replay(e.get(key), answers, e.now())
	e.states.Set(key, next.Clone())
	return next
}

func (e *Ephemeral) Reset(context.Context) error {
	e.states.Clear()
	return nil
}
