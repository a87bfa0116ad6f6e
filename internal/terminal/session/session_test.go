package session_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/protocol"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/session"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/session/sessiontest"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const waitFor = 2 * time.Second

type recordingCheckpoint struct {
	mu     sync.Mutex
	states []*state.SessionState
}

func (r *recordingCheckpoint) Schedule(s *state.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.Clone())
}

func (r *recordingCheckpoint) last() *state.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return nil
	}
	return r.states[len(r.states)-1]
}

type harness struct {
	session    *session.Session
	panel      *sessiontest.Panel
	spawner    *sessiontest.Spawner
	checkpoint *recordingCheckpoint

	mu       sync.Mutex
	assigned []string
	disposed []session.DisposeReason
	accept   bool
}

func newHarness(t *testing.T, st *state.SessionState, strategy launch.Strategy, opts ...func(*session.Config)) *harness {
	t.Helper()
	h := &harness{
		panel:      sessiontest.NewPanel(),
		spawner:    &sessiontest.Spawner{},
		checkpoint: &recordingCheckpoint{},
		accept:     true,
	}
	cfg := session.Config{
		State:      st,
		Panel:      h.panel,
		Strategy:   strategy,
		Spawner:    h.spawner,
		Checkpoint: h.checkpoint,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.session = session.New(cfg)
	go func() {
		for ev := range h.session.Events() {
			h.mu.Lock()
			switch ev.Kind {
			case session.EventAssigned:
				h.assigned = append(h.assigned, ev.ID)
				ev.Reply <- h.accept
			case session.EventDisposed:
				h.disposed = append(h.disposed, ev.Reason)
			}
			h.mu.Unlock()
		}
	}()
	h.session.Start()
	t.Cleanup(func() { h.session.Close(session.ReasonShutdown) })
	return h
}

func (h *harness) ready(t *testing.T, cols, rows int) *sessiontest.Process {
	t.Helper()
	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: cols, Rows: rows})
	require.Eventually(t, func() bool { return h.session.Phase() == session.Running }, waitFor, time.Millisecond)
	spawns := h.spawner.Spawns()
	require.NotEmpty(t, spawns)
	return spawns[len(spawns)-1].Process
}

func (h *harness) disposeReasons() []session.DisposeReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]session.DisposeReason(nil), h.disposed...)
}

func (h *harness) waitDisposed(t *testing.T) {
	t.Helper()
	select {
	case <-h.session.Done():
	case <-time.After(waitFor):
		t.Fatal("session was not disposed")
	}
	require.Eventually(t, func() bool { return len(h.disposeReasons()) == 1 }, waitFor, time.Millisecond)
}

func baseState() *state.SessionState {
	return &state.SessionState{
		ID:      "term_test",
		Cwd:     "/tmp",
		Shell:   "/bin/sh",
		Args:    []string{},
		Env:     map[string]string{"LANG": "en_US.UTF-8"},
		Visible: true,
	}
}

func TestDirectSpawn(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	require.Eventually(t, func() bool { return len(h.panel.Posted(protocol.TypePreload)) == 1 }, waitFor, time.Millisecond)
	var preload state.SessionState
	require.NoError(t, h.panel.Posted(protocol.TypePreload)[0].Decode(&preload))
	assert.Equal(t, "term_test", preload.ID)

	h.ready(t, 80, 24)

	spawns := h.spawner.Spawns()
	require.Len(t, spawns, 1)
	assert.Equal(t, "/bin/sh", spawns[0].Command.Program)
	assert.Empty(t, spawns[0].Command.Args)
	assert.Equal(t, "/tmp", spawns[0].Command.Cwd)
	assert.Equal(t, state.Size{Cols: 80, Rows: 24}, spawns[0].Size)

	snap := h.session.Snapshot()
	require.NotNil(t, snap.Size)
	assert.Equal(t, state.Size{Cols: 80, Rows: 24}, *snap.Size)
	assert.Equal(t, 1001, h.session.Pid())
}

func TestMultiplexedSpawn(t *testing.T) {
	st := baseState()
	st.ID = "abc"
	st.Persistent = true
	h := newHarness(t, st, launch.MultiplexedStrategy("tmux", "ns"))

	h.ready(t, 100, 30)

	cmd := h.spawner.Spawns()[0].Command
	assert.Equal(t, "tmux", cmd.Program)
	assert.Equal(t, []string{"-L", "ns", "new-session", "-A", "-s", "abc", "'/bin/sh'", ";", "set-option", "status", "off"}, cmd.Args)
}

func TestSecondReadyIsIgnored(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	h.ready(t, 80, 24)

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24})
	h.panel.Send(protocol.TypeTitle, protocol.TitlePayload{Title: "sync"})
	require.Eventually(t, func() bool { return len(h.panel.Titles()) == 1 }, waitFor, time.Millisecond)

	assert.Len(t, h.spawner.Spawns(), 1)
	h.mu.Lock()
	assert.Len(t, h.assigned, 1)
	h.mu.Unlock()
}

func TestSurfaceSessionIDIsAdopted(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24, SessionID: "from_surface"})
	require.Eventually(t, func() bool { return h.session.Phase() == session.Running }, waitFor, time.Millisecond)

	assert.Equal(t, "from_surface", h.session.ID())
	h.mu.Lock()
	assert.Equal(t, []string{"from_surface"}, h.assigned)
	h.mu.Unlock()
}

func TestUnsafeSurfaceSessionIDIsIgnored(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24, SessionID: "../x; rm"})
	require.Eventually(t, func() bool { return h.session.Phase() == session.Running }, waitFor, time.Millisecond)

	assert.Equal(t, "term_test", h.session.ID())
}

func TestRestoredSessionKeepsItsID(t *testing.T) {
	logger, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(t, baseState(), launch.DirectStrategy(), func(cfg *session.Config) {
		cfg.Restored = true
		cfg.Logger = zap.New(logger)
	})

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24, SessionID: "from_surface"})
	require.Eventually(t, func() bool { return h.session.Phase() == session.Running }, waitFor, time.Millisecond)

	assert.Equal(t, "term_test", h.session.ID())
	assert.Equal(t, "term_test", h.session.Snapshot().ID)
	h.mu.Lock()
	assert.Equal(t, []string{"term_test"}, h.assigned)
	h.mu.Unlock()
	assert.Equal(t, 1, logs.FilterMessage("Keeping restored session id").Len())
}

func TestStdoutPostFailureIsLogged(t *testing.T) {
	logger, logs := observer.New(zapcore.DebugLevel)
	h := newHarness(t, baseState(), launch.DirectStrategy(), func(cfg *session.Config) {
		cfg.Logger = zap.New(logger)
	})
	proc := h.ready(t, 80, 24)

	h.panel.Close()
	proc.Emit([]byte("lost\r\n"))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to post to surface").
			FilterField(zap.String("type", protocol.TypeStdout)).Len() > 0
	}, waitFor, time.Millisecond)
	assert.Equal(t, session.Running, h.session.Phase())
}

func TestRejectedClaimDisposesAsDuplicate(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	h.mu.Lock()
	h.accept = false
	h.mu.Unlock()

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24})
	h.waitDisposed(t)

	assert.Equal(t, []session.DisposeReason{session.ReasonDuplicate}, h.disposeReasons())
	assert.Empty(t, h.spawner.Spawns())
	assert.Equal(t, 1, h.panel.Closes())
}

func TestStdinForwardedOnlyWhileRunning(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.panel.Send(protocol.TypeStdin, "dropped")
	proc := h.ready(t, 80, 24)

	h.panel.Send(protocol.TypeStdin, "ls\r")
	h.panel.SendRaw(protocol.Message{Type: protocol.TypeStdin, Data: []byte(`{"type":"Buffer","data":[3]}`)})

	require.Eventually(t, func() bool { return string(proc.Input()) == "ls\r\x03" }, waitFor, time.Millisecond)
}

func TestStdoutForwarded(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	proc := h.ready(t, 80, 24)

	proc.Emit([]byte("hello\r\n"))

	require.Eventually(t, func() bool { return len(h.panel.Posted(protocol.TypeStdout)) == 1 }, waitFor, time.Millisecond)
	data, err := protocol.DecodeBytes(h.panel.Posted(protocol.TypeStdout)[0].Data)
	require.NoError(t, err)
	assert.Equal(t, "hello\r\n", string(data))
}

func TestTitleIsStoredRawAndShownShortened(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	long := "user@host: ~/src/github.com/project"
	h.panel.Send(protocol.TypeTitle, protocol.TitlePayload{Title: long})

	require.Eventually(t, func() bool { return len(h.panel.Titles()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, session.FormatTitle(long), h.panel.Titles()[0])
	assert.Equal(t, long, h.session.Snapshot().Title)
	require.NotNil(t, h.checkpoint.last())
	assert.Equal(t, long, h.checkpoint.last().Title)
}

func TestResizeRecordsSizeOnlyWhileVisible(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	proc := h.ready(t, 80, 24)

	h.session.SetVisible(false)
	h.panel.Send(protocol.TypeResize, protocol.ResizePayload{Cols: 132, Rows: 50})
	require.Eventually(t, func() bool { return len(proc.Sizes()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, state.Size{Cols: 80, Rows: 24}, *h.session.Snapshot().Size)

	h.session.SetVisible(true)
	h.panel.Send(protocol.TypeResize, protocol.ResizePayload{Cols: 100, Rows: 40})
	require.Eventually(t, func() bool { return len(proc.Sizes()) == 2 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool {
		return *h.session.Snapshot().Size == state.Size{Cols: 100, Rows: 40}
	}, waitFor, time.Millisecond)

	views := h.panel.Posted(protocol.TypeViewStateChange)
	require.Len(t, views, 2)
	var v protocol.VisibilityPayload
	require.NoError(t, views[0].Decode(&v))
	assert.False(t, v.Visible)
}

func TestHiddenSessionSpawnDoesNotRecordSize(t *testing.T) {
	st := baseState()
	st.Visible = false
	h := newHarness(t, st, launch.DirectStrategy())
	h.ready(t, 80, 24)

	assert.Nil(t, h.session.Snapshot().Size)
}

func TestHistoryIgnoredForPersistentSessions(t *testing.T) {
	st := baseState()
	st.Persistent = true
	h := newHarness(t, st, launch.MultiplexedStrategy("tmux", "ns"))

	h.panel.Send(protocol.TypeHistory, protocol.HistoryPayload{History: "scrollback"})
	h.panel.Send(protocol.TypeTitle, protocol.TitlePayload{Title: "t"})
	require.Eventually(t, func() bool { return len(h.panel.Titles()) == 1 }, waitFor, time.Millisecond)

	assert.Nil(t, h.session.Snapshot().History)
}

func TestHistoryRecordedForDirectSessions(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.panel.Send(protocol.TypeHistory, protocol.HistoryPayload{History: "scrollback"})
	require.Eventually(t, func() bool { return h.session.Snapshot().History != nil }, waitFor, time.Millisecond)
	assert.Equal(t, "scrollback", *h.session.Snapshot().History)
}

func TestNonZeroExitShowsWarning(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	proc := h.ready(t, 80, 24)

	proc.Exit(session.ExitStatus{Code: 1})
	h.waitDisposed(t)

	assert.Equal(t, []string{"Terminal exited with 1 due to signal 0"}, h.panel.Warnings())
	assert.Equal(t, []session.DisposeReason{session.ReasonExited}, h.disposeReasons())
	assert.Equal(t, 0, proc.Kills())
	assert.Equal(t, 1, h.panel.Closes())
}

func TestCleanExitHasNoWarning(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	proc := h.ready(t, 80, 24)

	proc.Exit(session.ExitStatus{Code: 0})
	h.waitDisposed(t)

	assert.Empty(t, h.panel.Warnings())
	assert.Equal(t, []session.DisposeReason{session.ReasonExited}, h.disposeReasons())
}

func TestDisposeIsIdempotent(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	proc := h.ready(t, 80, 24)

	h.session.Close(session.ReasonClosed)
	h.session.Close(session.ReasonShutdown)
	h.waitDisposed(t)
	h.session.Close(session.ReasonClosed)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []session.DisposeReason{session.ReasonClosed}, h.disposeReasons())
	assert.Equal(t, 1, proc.Kills())
	assert.Equal(t, 1, h.panel.Closes())
	assert.Equal(t, session.Disposed, h.session.Phase())
	assert.Equal(t, 0, h.session.Pid())
}

func TestDetachMessage(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	h.ready(t, 80, 24)

	h.panel.Send(protocol.TypeDetach, nil)
	h.waitDisposed(t)

	assert.Equal(t, []session.DisposeReason{session.ReasonDetached}, h.disposeReasons())
}

func TestSurfaceDisconnectClosesSession(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	h.ready(t, 80, 24)

	h.panel.Disconnect()
	h.waitDisposed(t)

	assert.Equal(t, []session.DisposeReason{session.ReasonClosed}, h.disposeReasons())
}

func TestSpawnFailure(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())
	h.spawner.Err = errors.New("no such file")

	h.panel.Send(protocol.TypeReady, protocol.ReadyPayload{Cols: 80, Rows: 24})
	h.waitDisposed(t)

	assert.Equal(t, []session.DisposeReason{session.ReasonSpawnFailed}, h.disposeReasons())
	require.Len(t, h.panel.Warnings(), 1)
	assert.Contains(t, h.panel.Warnings()[0], "no such file")
}

func TestRefreshThemeBeforeReady(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.session.RefreshTheme()
	require.Eventually(t, func() bool { return len(h.panel.Posted(protocol.TypeThemeChange)) == 1 }, waitFor, time.Millisecond)
}

func TestUnknownMessageIsDropped(t *testing.T) {
	h := newHarness(t, baseState(), launch.DirectStrategy())

	h.panel.SendRaw(protocol.Message{Type: "bogus"})
	h.panel.SendRaw(protocol.Message{Type: protocol.TypeResize, Data: []byte(`"nope"`)})
	h.ready(t, 80, 24)

	assert.Empty(t, h.disposeReasons())
}

func TestStartRestoresTitle(t *testing.T) {
	st := baseState()
	st.Title = "vim very/long/path/to/file.go"
	h := newHarness(t, st, launch.DirectStrategy())

	require.Eventually(t, func() bool { return len(h.panel.Titles()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, session.FormatTitle(st.Title), h.panel.Titles()[0])
}
