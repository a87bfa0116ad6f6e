package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/terminaltab/internal/shared/id"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/locale"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/session"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/shellconfig"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
	"go.uber.org/zap"
)

var (
	// ErrStateUnavailable is returned when a restore finds no usable state.
	ErrStateUnavailable = errors.New("session state unavailable")

	// ErrAlreadyLive is returned when restoring an id that a live session owns.
	ErrAlreadyLive = errors.New("session already live")

	// ErrNotFound is returned for ids with no live session.
	ErrNotFound = errors.New("session not found")

	// ErrShuttingDown is returned once Shutdown has begun.
	ErrShuttingDown = errors.New("registry shutting down")
)

// Config holds the registry's collaborators.
type Config struct {
	// Strategy is used for persistent sessions; non-persistent sessions
	// always launch directly.
	Strategy    launch.Strategy
	Multiplexer *launch.Multiplexer
	Shell       *shellconfig.Provider
	Locale      *locale.Resolver
	Checkpoint  *state.Checkpointer
	Spawner     session.Spawner

	// Workspace is the default cwd; empty falls back to the home directory.
	Workspace      string
	CommandTimeout time.Duration

	// Environ and HomeDir default to os.Environ and os.UserHomeDir.
	Environ func() []string
	HomeDir func() (string, error)

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Launch describes how a new session's process is started.
type Launch struct {
	Shell   string
	Args    []string
	Cwd     string
	Env     map[string]string
	Visible bool
}

// CreateRequest is an interactive request for a new terminal.
type CreateRequest struct {
	// Cwd may name a directory or a file; a file resolves to its directory.
	Cwd        string
	Persistent bool
	Visible    bool
}

// Restorable describes persisted state with no live session.
type Restorable struct {
	State            *state.SessionState `json:"state"`
	Title            string              `json:"title"`
	MultiplexerAlive bool                `json:"multiplexerAlive"`
}

// Registry tracks live sessions by id and runs teardown when they end.
type Registry struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session.Session
	pending  map[*session.Session]struct{}
	closing  bool

	watchers sync.WaitGroup
}

// New creates a registry. A nil Checkpoint gets an in-memory store.
func New(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Checkpoint == nil {
		cfg.Checkpoint = state.NewCheckpointer(state.NewMemoryStore(), 500*time.Millisecond, cfg.Logger, cfg.Metrics)
	}
	if cfg.Environ == nil {
		cfg.Environ = os.Environ
	}
	if cfg.HomeDir == nil {
		cfg.HomeDir = os.UserHomeDir
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	return &Registry{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*session.Session),
		pending:  make(map[*session.Session]struct{}),
	}
}

// Create starts an interactive terminal with the default shell profile.
func (r *Registry) Create(ctx context.Context, panel session.Panel, req CreateRequest) (*session.Session, error) {
	if r.isClosing() {
		panel.Close()
		return nil, ErrShuttingDown
	}

	profile := r.profile()
	extra := map[string]string{"COLORTERM": "truecolor"}
	if r.cfg.Locale != nil {
		extra["LANG"] = r.cfg.Locale.Resolve(ctx)
	}

	l := Launch{
		Shell:   profile.Shell,
		Args:    profile.Args,
		Cwd:     r.resolveCwd(req.Cwd),
		Env:     shellconfig.BuildEnv(r.cfg.Environ(), extra, profile.Env),
		Visible: req.Visible,
	}
	return r.CreateTerminal(panel, l, nil, req.Persistent), nil
}

// Restore recreates a session from persisted state. Missing or invalid state
// and ids owned by a live session close the panel and return an error.
func (r *Registry) Restore(ctx context.Context, panel session.Panel, sessionID string) (*session.Session, error) {
	if r.isClosing() {
		panel.Close()
		return nil, ErrShuttingDown
	}

	st, err := r.cfg.Checkpoint.Store().Load(ctx, sessionID)
	if err != nil {
		panel.Close()
		r.logger.Warn("Cannot restore session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrStateUnavailable, sessionID, err)
	}
	if _, live := r.Get(st.ID); live {
		panel.Close()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyLive, st.ID)
	}

	l := Launch{
		Shell:   st.Shell,
		Args:    st.Args,
		Cwd:     st.Cwd,
		Env:     st.Env,
		Visible: st.Visible,
	}
	return r.CreateTerminal(panel, l, st, st.Persistent), nil
}

// CreateTerminal builds and starts a session. With restored state the
// session keeps its id, title, size and history; otherwise it gets a new id.
// The session is registered when its surface reports ready.
func (r *Registry) CreateTerminal(panel session.Panel, l Launch, restored *state.SessionState, persistent bool) *session.Session {
	var st *state.SessionState
	origin := "new"
	if restored != nil {
		st = restored.Clone()
		origin = "restore"
	} else {
		st = &state.SessionState{
			ID:      id.NewTerminalID().String(),
			Cwd:     l.Cwd,
			Shell:   l.Shell,
			Args:    l.Args,
			Env:     l.Env,
			Visible: l.Visible,
		}
	}
	st.Persistent = persistent

	strategy := launch.DirectStrategy()
	if persistent {
		strategy = r.cfg.Strategy
	}

	s := session.New(session.Config{
		State:      st,
		Panel:      panel,
		Strategy:   strategy,
		Spawner:    r.cfg.Spawner,
		Checkpoint: r.cfg.Checkpoint,
		Logger:     r.logger.Named("session"),
		Metrics:    r.cfg.Metrics,
		Restored:   restored != nil,
	})

	r.mu.Lock()
	r.pending[s] = struct{}{}
	r.updateGauge()
	r.mu.Unlock()

	r.watchers.Add(1)
	go r.watch(s, persistent, restored != nil)

	r.cfg.Metrics.IncSessionsCreated(origin)
	r.logger.Info("Terminal created",
		zap.String("session_id", st.ID),
		zap.String("origin", origin),
		zap.Bool("persistent", persistent),
		zap.String("cwd", st.Cwd))

	s.Start()
	return s
}

func (r *Registry) watch(s *session.Session, persistent, restored bool) {
	defer r.watchers.Done()

	assigned := false
	for ev := range s.Events() {
		switch ev.Kind {
		case session.EventAssigned:
			ok := r.claim(s, ev.ID)
			assigned = ok
			ev.Reply <- ok
		case session.EventDisposed:
			r.release(s, ev.ID)
			r.teardown(s.Snapshot(), ev.Reason, persistent, assigned || restored)
		}
	}
}

func (r *Registry) claim(s *session.Session, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return false
	}
	if owner, ok := r.sessions[sessionID]; ok && owner != s {
		return false
	}
	r.sessions[sessionID] = s
	delete(r.pending, s)
	r.updateGauge()
	return true
}

func (r *Registry) release(s *session.Session, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[sessionID] == s {
		delete(r.sessions, sessionID)
	}
	delete(r.pending, s)
	r.updateGauge()
}

// teardown applies the disposal policy. Explicit closes and exits forget the
// state and kill the multiplexer session; detach and shutdown keep both so
// the session can be restored later.
func (r *Registry) teardown(snap *state.SessionState, reason session.DisposeReason, persistent, owned bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CommandTimeout)
	defer cancel()

	logger := r.logger.With(
		zap.String("session_id", snap.ID),
		zap.String("reason", string(reason)))

	switch reason {
	case session.ReasonClosed, session.ReasonExited, session.ReasonSpawnFailed:
		if !owned {
			return
		}
		r.cfg.Checkpoint.Forget(ctx, snap.ID)
		if persistent && r.cfg.Multiplexer != nil {
			err := r.cfg.Multiplexer.KillSession(ctx, snap.ID)
			r.cfg.Metrics.RecordMultiplexerCommand("kill-session", err)
			if err != nil {
				logger.Warn("Failed to kill multiplexer session", zap.Error(err))
			}
		}
	case session.ReasonDetached, session.ReasonShutdown:
		if !owned {
			return
		}
		r.cfg.Checkpoint.Flush(ctx, snap)
	case session.ReasonDuplicate:
	}
	logger.Info("Terminal removed")
}

// Get returns the live session registered under id.
func (r *Registry) Get(sessionID string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// List returns info for every registered session, oldest first.
func (r *Registry) List(ctx context.Context) []session.Info {
	live := r.live(false)
	infos := make([]session.Info, 0, len(live))
	for _, s := range live {
		infos = append(infos, s.Info(ctx))
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Restorable lists persisted states that no live session owns.
func (r *Registry) Restorable(ctx context.Context) ([]Restorable, error) {
	states, err := r.cfg.Checkpoint.Store().List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Restorable, 0, len(states))
	for _, st := range states {
		if _, live := r.Get(st.ID); live {
			continue
		}
		item := Restorable{State: st, Title: session.FormatTitle(st.Title)}
		if st.Persistent && r.cfg.Multiplexer != nil {
			item.MultiplexerAlive = r.cfg.Multiplexer.HasSession(ctx, st.ID)
		}
		out = append(out, item)
	}
	return out, nil
}

// Close explicitly closes the session registered under id.
func (r *Registry) Close(sessionID string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	s.Close(session.ReasonClosed)
	return nil
}

// SetVisible updates the visibility of the session registered under id.
func (r *Registry) SetVisible(sessionID string, visible bool) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	s.SetVisible(visible)
	return nil
}

// BroadcastThemeChange notifies every live or pending session.
func (r *Registry) BroadcastThemeChange() {
	for _, s := range r.live(true) {
		s.RefreshTheme()
	}
	r.cfg.Metrics.IncThemeBroadcasts()
}

// Shutdown disposes every session with reason shutdown, waits for their
// teardown and flushes pending checkpoints. Multiplexer sessions are left
// running.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	for _, s := range r.live(true) {
		s.Close(session.ReasonShutdown)
	}

	done := make(chan struct{})
	go func() {
		r.watchers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("waiting for sessions: %w", ctx.Err())
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CommandTimeout)
	defer cancel()
	r.cfg.Checkpoint.FlushAll(flushCtx)
	return err
}

func (r *Registry) live(includePending bool) []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions)+len(r.pending))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	if includePending {
		for s := range r.pending {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

// updateGauge must be called with mu held.
func (r *Registry) updateGauge() {
	r.cfg.Metrics.SetSessionsActive(len(r.sessions))
}

func (r *Registry) profile() shellconfig.Profile {
	if r.cfg.Shell == nil {
		return shellconfig.New(shellconfig.File{}, shellconfig.CurrentPlatform(), nil).Profile()
	}
	return r.cfg.Shell.Profile()
}

// resolveCwd maps a requested location to a directory: a file resolves to
// its parent, empty or unusable input to the workspace and then $HOME.
func (r *Registry) resolveCwd(requested string) string {
	if requested != "" {
		info, err := os.Stat(requested)
		switch {
		case err != nil:
			r.logger.Warn("Requested cwd unavailable, using default",
				zap.String("cwd", requested),
				zap.Error(err))
		case info.IsDir():
			return requested
		default:
			return filepath.Dir(requested)
		}
	}
	if r.cfg.Workspace != "" {
		return r.cfg.Workspace
	}
	if home, err := r.cfg.HomeDir(); err == nil && home != "" {
		return home
	}
	return string(filepath.Separator)
}
