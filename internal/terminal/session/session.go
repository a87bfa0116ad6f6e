package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/terminaltab/internal/shared/id"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/protocol"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
	"go.uber.org/zap"
)

const (
	defaultCols = 80
	defaultRows = 24

	readBufferSize = 4096

	// drainTimeout bounds how long exit delivery waits for trailing output.
	drainTimeout = 200 * time.Millisecond
)

// Phase is the lifecycle state of a Session.
type Phase int32

const (
	Constructed Phase = iota
	AwaitingReady
	Running
	Disposed
)

func (p Phase) String() string {
	switch p {
	case Constructed:
		return "constructed"
	case AwaitingReady:
		return "awaiting_ready"
	case Running:
		return "running"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// DisposeReason classifies how a session ended.
type DisposeReason string

const (
	ReasonClosed      DisposeReason = "closed"
	ReasonExited      DisposeReason = "exited"
	ReasonDetached    DisposeReason = "detached"
	ReasonShutdown    DisposeReason = "shutdown"
	ReasonDuplicate   DisposeReason = "duplicate"
	ReasonSpawnFailed DisposeReason = "spawn_failed"
)

// EventKind identifies a lifecycle event.
type EventKind int

const (
	// EventAssigned asks the owner to claim the session id. The session
	// blocks until a value is sent on Reply; false disposes it as a duplicate.
	EventAssigned EventKind = iota
	// EventDisposed is the final event; the channel is closed after it.
	EventDisposed
)

// Event is emitted on the session's event channel.
type Event struct {
	Kind   EventKind
	ID     string
	Reason DisposeReason
	Reply  chan<- bool
}

// Panel is the UI surface a session renders into.
type Panel interface {
	// Inbound delivers surface messages. It is closed when the surface goes
	// away.
	Inbound() <-chan protocol.Message
	Post(msg protocol.Message) error
	SetTitle(title string)
	ShowWarning(message string)
	Close() error
}

// Checkpointer receives state snapshots for debounced persistence.
type Checkpointer interface {
	Schedule(s *state.SessionState)
}

// Config assembles a Session.
type Config struct {
	State      *state.SessionState
	Panel      Panel
	Strategy   launch.Strategy
	Spawner    Spawner
	Checkpoint Checkpointer
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
	// Restored marks State as loaded from persistence. Its id is kept even
	// when the surface reports a different one.
	Restored bool
}

// Session bridges one pseudo-terminal process and one UI surface. All state
// transitions happen on a single loop goroutine; the exported methods only
// enqueue work for it.
type Session struct {
	panel      Panel
	strategy   launch.Strategy
	spawner    Spawner
	checkpoint Checkpointer
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	createdAt  time.Time
	restored   bool

	// owned by the loop goroutine
	state  *state.SessionState
	proc   Process
	exited bool

	phase atomic.Int32
	pid   atomic.Int64

	mu        sync.RWMutex
	published *state.SessionState

	events   chan Event
	control  chan func()
	closeReq chan DisposeReason
	output   chan []byte
	exit     chan ExitStatus
	done     chan struct{}

	startOnce sync.Once
}

// New creates a session in the Constructed phase. Nothing runs until Start.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	spawner := cfg.Spawner
	if spawner == nil {
		spawner = PTYSpawner{}
	}

	st := cfg.State.Clone()
	if st.Persistent {
		st.History = nil
	}

	s := &Session{
		panel:      cfg.Panel,
		strategy:   cfg.Strategy,
		spawner:    spawner,
		checkpoint: cfg.Checkpoint,
		logger:     logger.With(zap.String("session_id", st.ID)),
		metrics:    cfg.Metrics,
		createdAt:  time.Now(),
		restored:   cfg.Restored,
		state:      st,
		published:  st.Clone(),
		events:     make(chan Event, 2),
		control:    make(chan func()),
		closeReq:   make(chan DisposeReason, 1),
		output:     make(chan []byte, 16),
		exit:       make(chan ExitStatus, 1),
		done:       make(chan struct{}),
	}
	s.phase.Store(int32(Constructed))
	return s
}

// Events returns the lifecycle event channel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the session is disposed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	return Phase(s.phase.Load())
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published.ID
}

// Pid returns the child process id, or 0 when no process is running.
func (s *Session) Pid() int {
	return int(s.pid.Load())
}

// Snapshot returns a copy of the latest session state.
func (s *Session) Snapshot() *state.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.published.Clone()
}

// Start preloads the surface with the session state and waits for ready.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.phase.Store(int32(AwaitingReady))
		go s.run()
	})
}

// SetVisible records surface visibility and notifies the surface.
func (s *Session) SetVisible(visible bool) {
	s.do(func() {
		s.state.Visible = visible
		s.post(protocol.TypeViewStateChange, protocol.VisibilityPayload{Visible: visible})
		s.changed()
	})
}

// RefreshTheme asks the surface to re-read ambient style.
func (s *Session) RefreshTheme() {
	s.do(func() {
		s.post(protocol.TypeThemeChange, nil)
	})
}

// Close disposes the session. The first reason wins; Close never blocks.
func (s *Session) Close(reason DisposeReason) {
	select {
	case s.closeReq <- reason:
	default:
	}
}

// do runs fn on the loop. It is dropped once the session is disposed.
func (s *Session) do(fn func()) {
	select {
	case s.control <- fn:
	case <-s.done:
	}
}

func (s *Session) run() {
	if err := s.postPayload(protocol.TypePreload, s.state); err != nil {
		s.logger.Warn("Failed to preload surface", zap.Error(err))
	}
	if s.state.Title != "" {
		s.panel.SetTitle(FormatTitle(s.state.Title))
	}

	inbound := s.panel.Inbound()
	for s.Phase() != Disposed {
		select {
		case msg, ok := <-inbound:
			if !ok {
				s.dispose(ReasonClosed)
				continue
			}
			s.handle(msg)
		case chunk := <-s.output:
			if err := s.panel.Post(protocol.Stdout(chunk)); err != nil {
				s.logger.Debug("Failed to post to surface",
					zap.String("type", protocol.TypeStdout),
					zap.Error(err))
			}
		case status := <-s.exit:
			s.onExit(status)
		case fn := <-s.control:
			fn()
		case reason := <-s.closeReq:
			s.dispose(reason)
		}
	}
}

func (s *Session) handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeReady:
		var p protocol.ReadyPayload
		if err := msg.Decode(&p); err != nil {
			s.violation(msg.Type, err)
			return
		}
		s.onReady(p)
	case protocol.TypeStdin:
		data, err := protocol.DecodeBytes(msg.Data)
		if err != nil {
			s.violation(msg.Type, err)
			return
		}
		s.onStdin(data)
	case protocol.TypeResize:
		var p protocol.ResizePayload
		if err := msg.Decode(&p); err != nil {
			s.violation(msg.Type, err)
			return
		}
		s.onResize(p.Cols, p.Rows)
	case protocol.TypeTitle:
		var p protocol.TitlePayload
		if err := msg.Decode(&p); err != nil {
			s.violation(msg.Type, err)
			return
		}
		s.onTitle(p.Title)
	case protocol.TypeHistory:
		var p protocol.HistoryPayload
		if err := msg.Decode(&p); err != nil {
			s.violation(msg.Type, err)
			return
		}
		s.onHistory(p.History)
	case protocol.TypeDetach:
		s.dispose(ReasonDetached)
	default:
		s.violation(msg.Type, fmt.Errorf("unknown message type"))
	}
}

func (s *Session) violation(msgType string, err error) {
	s.logger.Warn("Dropping surface message",
		zap.String("type", msgType),
		zap.String("phase", s.Phase().String()),
		zap.Error(err))
}

func (s *Session) onReady(p protocol.ReadyPayload) {
	if s.Phase() != AwaitingReady {
		s.violation(protocol.TypeReady, fmt.Errorf("session already started"))
		return
	}

	if p.SessionID != "" && p.SessionID != s.state.ID {
		if s.restored {
			s.logger.Warn("Keeping restored session id", zap.String("surface_session_id", p.SessionID))
		} else if id.IsSafeName(p.SessionID) {
			s.state.ID = p.SessionID
			s.logger = s.logger.With(zap.String("surface_session_id", p.SessionID))
		} else {
			s.logger.Warn("Ignoring unsafe surface session id", zap.String("surface_session_id", p.SessionID))
		}
	}
	s.publish()

	reply := make(chan bool, 1)
	s.events <- Event{Kind: EventAssigned, ID: s.state.ID, Reply: reply}
	select {
	case ok := <-reply:
		if !ok {
			s.logger.Warn("Session id already owned by a live session")
			s.dispose(ReasonDuplicate)
			return
		}
	case reason := <-s.closeReq:
		s.dispose(reason)
		return
	}

	size := state.Size{Cols: p.Cols, Rows: p.Rows}
	if size.Cols <= 0 || size.Rows <= 0 {
		size = state.Size{Cols: defaultCols, Rows: defaultRows}
	}

	cmd, err := s.strategy.Resolve(launch.Params{
		ID:    s.state.ID,
		Shell: s.state.Shell,
		Args:  s.state.Args,
		Cwd:   s.state.Cwd,
		Env:   s.state.Env,
	})
	if err == nil {
		s.proc, err = s.spawner.Spawn(cmd, size)
	}
	if err != nil {
		s.metrics.IncSpawnFailures()
		s.logger.Error("Failed to spawn terminal process",
			zap.String("command", cmd.Line()),
			zap.Error(err))
		s.panel.ShowWarning(fmt.Sprintf("Failed to start terminal: %v", err))
		s.dispose(ReasonSpawnFailed)
		return
	}

	s.pid.Store(int64(s.proc.Pid()))
	if s.state.Visible {
		s.state.Size = &size
	}
	s.phase.Store(int32(Running))
	s.changed()

	s.logger.Info("Terminal process started",
		zap.String("command", cmd.Line()),
		zap.Int("pid", s.proc.Pid()),
		zap.String("strategy", s.strategy.Kind.String()))

	drained := make(chan struct{})
	go s.readOutput(s.proc, drained)
	go s.waitExit(s.proc, drained)
}

func (s *Session) onStdin(data []byte) {
	if s.Phase() != Running {
		s.violation(protocol.TypeStdin, fmt.Errorf("no running process"))
		return
	}
	if _, err := s.proc.Write(data); err != nil {
		s.logger.Warn("Failed to write to terminal", zap.Error(err))
	}
}

func (s *Session) onResize(cols, rows int) {
	if s.Phase() != Running {
		s.violation(protocol.TypeResize, fmt.Errorf("no running process"))
		return
	}
	if cols <= 0 || rows <= 0 {
		s.violation(protocol.TypeResize, fmt.Errorf("invalid size %dx%d", cols, rows))
		return
	}
	if err := s.proc.Resize(cols, rows); err != nil {
		s.logger.Warn("Failed to resize terminal", zap.Error(err))
		return
	}
	if s.state.Visible {
		s.state.Size = &state.Size{Cols: cols, Rows: rows}
		s.changed()
	}
}

func (s *Session) onTitle(title string) {
	s.state.Title = title
	s.panel.SetTitle(FormatTitle(title))
	s.changed()
}

func (s *Session) onHistory(history string) {
	if s.state.Persistent {
		return
	}
	s.state.History = &history
	s.changed()
}

func (s *Session) onExit(status ExitStatus) {
	s.exited = true
	s.pid.Store(0)
	s.logger.Info("Terminal process exited",
		zap.Int("code", status.Code),
		zap.Int("signal", status.Signal))
	if status.Code != 0 {
		s.panel.ShowWarning(fmt.Sprintf("Terminal exited with %d due to signal %d", status.Code, status.Signal))
	}
	s.dispose(ReasonExited)
}

// dispose is idempotent; only the first call has any effect.
func (s *Session) dispose(reason DisposeReason) {
	if s.Phase() == Disposed {
		return
	}
	s.phase.Store(int32(Disposed))
	close(s.done)

	if s.proc != nil {
		if !s.exited {
			if err := s.proc.Kill(); err != nil {
				s.logger.Warn("Failed to kill terminal process", zap.Error(err))
			}
		}
		s.proc.Close()
		s.pid.Store(0)
	}
	if err := s.panel.Close(); err != nil {
		s.logger.Debug("Surface close failed", zap.Error(err))
	}
	s.publish()

	s.metrics.IncSessionsDisposed(string(reason))
	s.logger.Info("Session disposed", zap.String("reason", string(reason)))

	s.events <- Event{Kind: EventDisposed, ID: s.state.ID, Reason: reason}
	close(s.events)
}

func (s *Session) readOutput(proc Process, drained chan<- struct{}) {
	defer close(drained)
	buf := make([]byte, readBufferSize)
	for {
		n, err := proc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.output <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitExit(proc Process, drained <-chan struct{}) {
	status := proc.Wait()
	select {
	case <-drained:
	case <-time.After(drainTimeout):
	case <-s.done:
		return
	}
	select {
	case s.exit <- status:
	case <-s.done:
	}
}

// changed publishes the state and schedules a checkpoint.
func (s *Session) changed() {
	s.publish()
	if s.checkpoint != nil {
		s.checkpoint.Schedule(s.state)
	}
}

func (s *Session) publish() {
	snap := s.state.Clone()
	s.mu.Lock()
	s.published = snap
	s.mu.Unlock()
}

func (s *Session) post(msgType string, payload any) {
	if err := s.postPayload(msgType, payload); err != nil {
		s.logger.Debug("Failed to post to surface",
			zap.String("type", msgType),
			zap.Error(err))
	}
}

func (s *Session) postPayload(msgType string, payload any) error {
	msg, err := protocol.New(msgType, payload)
	if err != nil {
		return err
	}
	return s.panel.Post(msg)
}
