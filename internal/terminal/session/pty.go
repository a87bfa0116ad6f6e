package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/GriffinCanCode/terminaltab/internal/terminal/launch"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/shellconfig"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/state"
	"github.com/creack/pty"
)

// TermName is the terminal type advertised to spawned processes.
const TermName = "xterm-256color"

// ExitStatus describes how a child process ended.
type ExitStatus struct {
	Code   int
	Signal int
}

// Process is a running child attached to a pseudo-terminal.
type Process interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	// Wait blocks until the process exits.
	Wait() ExitStatus
	Kill() error
	Pid() int
	// Close releases the pty.
	Close() error
}

// Spawner starts processes.
type Spawner interface {
	Spawn(cmd launch.Command, size state.Size) (Process, error)
}

// PTYSpawner starts processes on a real pseudo-terminal.
type PTYSpawner struct{}

// Spawn starts cmd with the given window size.
func (PTYSpawner) Spawn(cmd launch.Command, size state.Size) (Process, error) {
	c := exec.Command(cmd.Program, cmd.Args...)
	c.Dir = cmd.Cwd
	if cmd.Env != nil {
		c.Env = append(shellconfig.Environ(cmd.Env), "TERM="+TermName)
	} else {
		c.Env = append(os.Environ(), "TERM="+TermName)
	}

	ptmx, err := pty.StartWithSize(c, &pty.Winsize{
		Rows: uint16(size.Rows),
		Cols: uint16(size.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}
	return &ptyProcess{cmd: c, ptmx: ptmx}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func (p *ptyProcess) Read(b []byte) (int, error)  { return p.ptmx.Read(b) }
func (p *ptyProcess) Write(b []byte) (int, error) { return p.ptmx.Write(b) }
func (p *ptyProcess) Pid() int                    { return p.cmd.Process.Pid }
func (p *ptyProcess) Close() error                { return p.ptmx.Close() }

func (p *ptyProcess) Resize(cols, rows int) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

func (p *ptyProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ptyProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	ps := p.cmd.ProcessState
	if ps == nil {
		if err != nil {
			return ExitStatus{Code: -1}
		}
		return ExitStatus{}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := int(ws.Signal())
		return ExitStatus{Code: 128 + sig, Signal: sig}
	}
	return ExitStatus{Code: ps.ExitCode()}
}
