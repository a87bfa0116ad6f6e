package state

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

type pendingWrite struct {
	timer *time.Timer
	state *SessionState
	gen   uint64
}

// Checkpointer debounces state writes per session id. Writes are serialized
// so a delete is never overtaken by a write that was already in flight.
type Checkpointer struct {
	store   Store
	delay   time.Duration
	logger  *zap.Logger
	metrics *monitoring.Metrics

	writeMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingWrite
}

// NewCheckpointer creates a checkpointer writing to store after delay of
// quiescence.
func NewCheckpointer(store Store, delay time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Checkpointer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkpointer{
		store:   store,
		delay:   delay,
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]*pendingWrite),
	}
}

// Store returns the underlying store.
func (c *Checkpointer) Store() Store {
	return c.store
}

// Schedule queues s for writing once no further Schedule for the same id
// arrives within the delay. The state is copied.
func (c *Checkpointer) Schedule(s *SessionState) {
	snapshot := s.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	gen := c.gen
	if p, ok := c.pending[snapshot.ID]; ok {
		p.timer.Stop()
	}
	c.pending[snapshot.ID] = &pendingWrite{
		state: snapshot,
		gen:   gen,
		timer: time.AfterFunc(c.delay, func() { c.fire(snapshot.ID, gen) }),
	}
}

func (c *Checkpointer) fire(sessionID string, gen uint64) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	p, ok := c.pending[sessionID]
	if !ok || p.gen != gen {
		c.mu.Unlock()
		return
	}
	delete(c.pending, sessionID)
	c.mu.Unlock()

	c.write(context.Background(), p.state)
}

// take removes and returns the pending write for id. Caller holds writeMu.
func (c *Checkpointer) take(sessionID string) *pendingWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[sessionID]
	if !ok {
		return nil
	}
	p.timer.Stop()
	delete(c.pending, sessionID)
	return p
}

// Flush cancels any pending write for s.ID and writes s now.
func (c *Checkpointer) Flush(ctx context.Context, s *SessionState) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.take(s.ID)
	return c.write(ctx, s.Clone())
}

// FlushAll writes every pending state now.
func (c *Checkpointer) FlushAll(ctx context.Context) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingWrite)
	c.mu.Unlock()

	for _, p := range pending {
		p.timer.Stop()
		c.write(ctx, p.state)
	}
}

// Forget cancels any pending write for id and deletes its stored state.
func (c *Checkpointer) Forget(ctx context.Context, sessionID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.take(sessionID)
	if err := c.store.Delete(ctx, sessionID); err != nil {
		c.logger.Warn("Failed to delete session state",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return err
	}
	return nil
}

// Pending reports the number of queued writes.
func (c *Checkpointer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Checkpointer) write(ctx context.Context, s *SessionState) error {
	err := c.store.Save(ctx, s)
	c.metrics.RecordCheckpoint(err)
	if err != nil {
		c.logger.Warn("Failed to checkpoint session state",
			zap.String("session_id", s.ID),
			zap.Error(err))
		return err
	}
	c.logger.Debug("Session state checkpointed", zap.String("session_id", s.ID))
	return nil
}
