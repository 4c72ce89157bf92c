// Package syncer pushes knowledge states that were committed locally but
// never acknowledged by the remote store. Delivery is at least once: a state
// is marked synced only after the remote upsert succeeded and only if no
// newer local version replaced it meanwhile.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/logging"
)

// Pending is the durable side of the sync: the rows not yet confirmed.
type Pending interface {
	ListUnsynced(ctx context.Context, limit int) ([]bkt.KnowledgeState, error)
	MarkSynced(ctx context.Context, st bkt.KnowledgeState) error
}

// Remote accepts knowledge state upserts.
type Remote interface {
	SaveKnowledgeState(ctx context.Context, st bkt.KnowledgeState) error
}

// Result summarizes one sync pass.
type Result struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Coordinator runs sync passes on demand and in the background.
type Coordinator struct {
	pending Pending
	remote  Remote
	log     logrus.FieldLogger
	delay   time.Duration

	run   sync.Mutex // one pass at a time
	nudge chan struct{}
	wg    sync.WaitGroup

	mu   sync.Mutex
	last Result
	at   time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithDebounce delays a nudged pass so bursts of writes share one pass.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) { c.delay = d }
}

// New creates a coordinator. remote should already carry any retry policy.
func New(pending Pending, remote Remote, opts ...Option) *Coordinator {
	c := &Coordinator{
		pending: pending,
		remote:  remote,
		log:     logging.Discard(),
		nudge:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SyncOfflineStates pushes every state that was unsynced when the pass
// began. States that fail stay pending for the next pass. The error is
// non-nil only when the pending list itself could not be read.
func (c *Coordinator) SyncOfflineStates(ctx context.Context) (Result, error) {
	c.run.Lock()
	defer c.run.Unlock()

	states, err := c.pending.ListUnsynced(ctx, 0)
	if err != nil {
		return Result{}, fmt.Errorf("list unsynced: %w", err)
	}

	res := Result{Total: len(states)}
	for i, st := range states {
		if err := c.push(ctx, st); err != nil {
			if ctx.Err() != nil {
				// Everything not attempted counts as failed.
				res.Failed += len(states) - i
				break
			}
			res.Failed++
			c.log.WithError(err).WithFields(logrus.Fields{
				"student": st.StudentID, "skill": st.SkillID,
			}).Warn("sync push failed")
			continue
		}
		res.Synced++
	}

	c.record(res)
	if res.Total > 0 {
		c.log.WithFields(logrus.Fields{
			"total": res.Total, "synced": res.Synced, "failed": res.Failed,
		}).Info("offline knowledge states synced")
	}
	return res, nil
}

func (c *Coordinator) push(ctx context.Context, st bkt.KnowledgeState) error {
	if err := c.remote.SaveKnowledgeState(ctx, st); err != nil {
		return err
	}
	return c.pending.MarkSynced(ctx, st)
}

// Nudge schedules a background pass. Calls made while one is already
// scheduled coalesce.
func (c *Coordinator) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// Start runs the background loop until ctx is done. When initial is true a
// pass runs right away.
func (c *Coordinator) Start(ctx context.Context, initial bool) {
	if initial {
		c.Nudge()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
}

func (c *Coordinator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.nudge:
		}
		if c.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.delay):
			}
		}
		if _, err := c.SyncOfflineStates(ctx); err != nil && ctx.Err() == nil {
			c.log.WithError(err).Warn("background sync failed")
		}
	}
}

// Wait blocks until the background loop has exited.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Last returns the result of the most recent pass and when it finished.
func (c *Coordinator) Last() (Result, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.at
}

func (c *Coordinator) record(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = res
	c.at = time.Now()
}
