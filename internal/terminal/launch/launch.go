// Package launch decides how a terminal's child process is started: either
// directly, or inside a named multiplexer session that survives host restarts.
package launch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/terminaltab/internal/shared/executor"
)

// Kind selects the launch strategy.
type Kind int

const (
	// Direct runs the shell as the pty's child.
	Direct Kind = iota
	// Multiplexed runs the shell inside a named multiplexer session.
	Multiplexed
)

func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case Multiplexed:
		return "multiplexed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrMissingID is returned when a multiplexed launch has no session name.
var ErrMissingID = errors.New("multiplexed launch requires a session id")

// Params are the launch parameters fixed at session creation.
type Params struct {
	ID    string
	Shell string
	Args  []string
	Cwd   string
	Env   map[string]string
}

// Command is the concrete program to spawn.
type Command struct {
	Program string
	Args    []string
	Cwd     string
	Env     map[string]string
}

// Line renders the command for logs.
func (c Command) Line() string {
	return strings.Join(append([]string{c.Program}, c.Args...), " ")
}

// Strategy is a tagged variant; Binary and Namespace apply to Multiplexed.
type Strategy struct {
	Kind      Kind
	Binary    string
	Namespace string
}

// DirectStrategy returns the passthrough strategy.
func DirectStrategy() Strategy {
	return Strategy{Kind: Direct}
}

// MultiplexedStrategy returns a strategy using binary on the private server
// socket namespace.
func MultiplexedStrategy(binary, namespace string) Strategy {
	return Strategy{Kind: Multiplexed, Binary: binary, Namespace: namespace}
}

// Resolve maps the launch parameters to the command to spawn.
//
// Multiplexed launches attach to the session named p.ID, creating it if
// absent, and hide the multiplexer status bar:
//
//	tmux -L <ns> new-session -A -s <id> '<shell>' '<arg>'... ; set-option status off
func (s Strategy) Resolve(p Params) (Command, error) {
	switch s.Kind {
	case Direct:
		return Command{
			Program: p.Shell,
			Args:    append([]string{}, p.Args...),
			Cwd:     p.Cwd,
			Env:     p.Env,
		}, nil
	case Multiplexed:
		if p.ID == "" {
			return Command{}, ErrMissingID
		}
		inner := EscapeCommand(append([]string{p.Shell}, p.Args...))
		return Command{
			Program: s.Binary,
			Args: []string{
				"-L", s.Namespace,
				"new-session", "-A", "-s", p.ID, inner,
				";", "set-option", "status", "off",
			},
			Cwd: p.Cwd,
			Env: p.Env,
		}, nil
	default:
		return Command{}, fmt.Errorf("unknown launch strategy %s", s.Kind)
	}
}

// EscapeCommand single-quotes each argument for a POSIX shell and joins them
// with spaces.
func EscapeCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}

// Multiplexer issues control commands to the private multiplexer server.
type Multiplexer struct {
	exec      executor.Executor
	binary    string
	namespace string
	breaker   *resilience.Breaker
}

// NewMultiplexer creates a controller for the strategy's server.
func NewMultiplexer(exec executor.Executor, s Strategy) *Multiplexer {
	return &Multiplexer{exec: exec, binary: s.Binary, namespace: s.Namespace}
}

// WithBreaker guards control commands with b. Only failures to run the
// binary at all count against it; a non-zero exit is a normal answer.
func (m *Multiplexer) WithBreaker(b *resilience.Breaker) *Multiplexer {
	m.breaker = b
	return m
}

// KillSession terminates the named session and its processes.
func (m *Multiplexer) KillSession(ctx context.Context, id string) error {
	if out, err := m.run(ctx, "kill-session", "-t", id); err != nil {
		return fmt.Errorf("kill-session %s: %w: %s", id, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// HasSession reports whether the named session is still alive on the server.
// Any failure, including a missing server, reports false.
func (m *Multiplexer) HasSession(ctx context.Context, id string) bool {
	_, err := m.run(ctx, "has-session", "-t", id)
	return err == nil
}

func (m *Multiplexer) run(ctx context.Context, args ...string) ([]byte, error) {
	var (
		out    []byte
		runErr error
	)
	err := m.breaker.Do(func() error {
		out, runErr = m.exec.CombinedOutput(ctx, m.binary, append([]string{"-L", m.namespace}, args...)...)
		var exitErr *exec.ExitError
		if runErr != nil && (ctx.Err() != nil || !errors.As(runErr, &exitErr)) {
			return runErr
		}
		return nil
	})
	if err != nil {
		return out, err
	}
	return out, runErr
}
