// Package knowledge stores per (student, skill) BKT states. Reads resolve
// through an ordered list of tiers: the remote learning store, the process
// memory cache, an optional Redis cache and the durable SQLite file. Writes
// always land locally first.
package knowledge

import (
	"context"
	"errors"

	"github.com/abhisek/skilltune/internal/bkt"
)

// ErrMiss is returned by a Tier that does not hold the requested key.
var ErrMiss = errors.New("knowledge state not found")

// Key identifies one knowledge state.
type Key struct {
	StudentID string
	SkillID   string
}

// String returns the storage form "{studentId}-{skillId}".
func (k Key) String() string {
	return k.StudentID + "-" + k.SkillID
}

// KeyOf returns the key of st.
func KeyOf(st bkt.KnowledgeState) Key {
	return Key{StudentID: st.StudentID, SkillID: st.SkillID}
}

// Repository is the knowledge state store contract. Reads never fail: a key
// no tier knows is initialized from the skill's default parameters.
type Repository interface {
	Get(ctx context.Context, key Key) bkt.KnowledgeState
	Save(ctx context.Context, st bkt.KnowledgeState)
	Update(ctx context.Context, key Key, correct bool) bkt.KnowledgeState
	// Replay applies answers in order as one locked update.
	Replay(ctx context.Context, key Key, answers []bool) bkt.KnowledgeState
	Reset(ctx context.Context) error
}
