// Package sessiontest provides in-memory panels and processes for exercising
// sessions without a real pty or UI surface.
package sessiontest

import (
	"errors"
	"io"
	"sync"

	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/protocol"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/session"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
)

// Panel records everything a session sends to its surface.
type Panel struct {
	inbound chan protocol.Message

	mu       sync.Mutex
	posted   []protocol.Message
	titles   []string
	warnings []string
	closes   int
	closed   bool
}

// NewPanel creates a panel with a buffered inbound queue.
func NewPanel() *Panel {
	return &Panel{inbound: make(chan protocol.Message, 64)}
}

// Send queues a surface message.
func (p *Panel) Send(msgType string, payload any) {
	msg, err := protocol.New(msgType, payload)
	if err != nil {
		panic(err)
	}
	p.inbound <- msg
}

// SendRaw queues a message as-is.
func (p *Panel) SendRaw(msg protocol.Message) {
	p.inbound <- msg
}

// Disconnect closes the inbound queue as a dropped surface would.
func (p *Panel) Disconnect() {
	close(p.inbound)
}

func (p *Panel) Inbound() <-chan protocol.Message { return p.inbound }

func (p *Panel) Post(msg protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("panel closed")
	}
	p.posted = append(p.posted, msg)
	return nil
}

func (p *Panel) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
}

func (p *Panel) ShowWarning(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, message)
}

func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.closed = true
	return nil
}

// Posted returns messages of msgType posted so far; empty msgType returns all.
func (p *Panel) Posted(msgType string) []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []protocol.Message
	for _, m := range p.posted {
		if msgType == "" || m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// Titles returns chrome titles in the order they were set.
func (p *Panel) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}

// Warnings returns the warnings shown so far.
func (p *Panel) Warnings() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.warnings...)
}

// Closes reports how many times Close was called.
func (p *Panel) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

// Spawn is one recorded Spawner call.
type Spawn struct {
	Command launch.Command
	Size    state.Size
	Process *Process
}

// Spawner hands out fake processes and records each spawn.
type Spawner struct {
	// Err, when set, fails every spawn.
	Err error

	mu     sync.Mutex
	spawns []Spawn
	nextID int
}

func (s *Spawner) Spawn(cmd launch.Command, size state.Size) (session.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.nextID++
	proc := NewProcess(1000 + s.nextID)
	s.spawns = append(s.spawns, Spawn{Command: cmd, Size: size, Process: proc})
	return proc, nil
}

// Spawns returns the recorded spawns.
func (s *Spawner) Spawns() []Spawn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Spawn(nil), s.spawns...)
}

// Process is a controllable fake child process.
type Process struct {
	pid    int
	out    *io.PipeReader
	outW   *io.PipeWriter
	exitCh chan session.ExitStatus

	mu     sync.Mutex
	input  []byte
	sizes  []state.Size
	kills  int
	exited bool
}

// NewProcess creates a fake process with pid.
func NewProcess(pid int) *Process {
	r, w := io.Pipe()
	return &Process{pid: pid, out: r, outW: w, exitCh: make(chan session.ExitStatus, 1)}
}

// Emit makes the process print data.
func (p *Process) Emit(data []byte) {
	p.outW.Write(data)
}

// Exit ends the process with status.
func (p *Process) Exit(status session.ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.outW.Close()
	p.exitCh <- status
}

func (p *Process) Read(b []byte) (int, error) { return p.out.Read(b) }

func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.input = append(p.input, b...)
	return len(b), nil
}

func (p *Process) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sizes = append(p.sizes, state.Size{Cols: cols, Rows: rows})
	return nil
}

func (p *Process) Wait() session.ExitStatus {
	return <-p.exitCh
}

func (p *Process) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.Exit(session.ExitStatus{Code: 137, Signal: 9})
	return nil
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) Close() error {
	return p.out.Close()
}

// Input returns everything written to the process.
func (p *Process) Input() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.input...)
}

// Sizes returns the resize requests received.
func (p *Process) Sizes() []state.Size {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]state.Size(nil), p.sizes...)
}

// Kills reports how many times Kill was called.
func (p *Process) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}
