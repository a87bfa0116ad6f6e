// Package executor runs short-lived helper commands (multiplexer control,
// locale enumeration) behind an interface so callers can be tested without
// the binaries installed.
package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Executor runs one-shot commands.
type Executor interface {
	// Output runs the command and returns stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// CombinedOutput runs the command and returns stdout and stderr together.
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Real executes commands with os/exec.
type Real struct{}

// NewReal returns an executor backed by os/exec.
func NewReal() *Real {
	return &Real{}
}

// Output runs the command and returns stdout. A failing command's stderr is
// folded into the returned error.
func (e *Real) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// CombinedOutput runs the command and returns stdout and stderr together.
func (e *Real) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Response is the canned result for a mocked command.
type Response struct {
	Stdout []byte
	Err    error
}

// Call records one invocation made through Mock.
type Call struct {
	Name string
	Args []string
}

// Line renders the call as a single space separated command line.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type rule struct {
	name   string
	prefix []string
	resp   Response
}

// Mock returns canned responses and records every call. Rules are matched in
// registration order; unmatched commands succeed with empty output.
type Mock struct {
	mu    sync.Mutex
	rules []rule
	calls []Call
}

// NewMock creates an empty mock executor.
func NewMock() *Mock {
	return &Mock{}
}

// On registers a response for commands named name whose arguments start with
// prefix.
func (m *Mock) On(name string, prefix []string, resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{name: name, prefix: prefix, resp: resp})
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Call, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Output returns the matching canned stdout and error.
func (m *Mock) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.exec(name, args)
}

// CombinedOutput behaves like Output for the mock.
func (m *Mock) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.exec(name, args)
}

func (m *Mock) exec(name string, args []string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Name: name, Args: append([]string(nil), args...)})

	for _, r := range m.rules {
		if r.name == name && hasPrefix(args, r.prefix) {
			return r.resp.Stdout, r.resp.Err
		}
	}
	return nil, nil
}

func hasPrefix(args, prefix []string) bool {
	if len(args) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if args[i] != p {
			return false
		}
	}
	return true
}
