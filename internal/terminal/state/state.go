package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrNotFound is returned when no state is stored under an id.
	ErrNotFound = errors.New("session state not found")

	// ErrInvalid is returned when stored bytes do not describe a session.
	ErrInvalid = errors.New("invalid session state")
)

// Size is the surface size in character cells.
type Size struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// SessionState is the persisted description of one terminal session. It is
// enough to recreate the session after the host restarts.
type SessionState struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Cwd        string            `json:"cwd"`
	Shell      string            `json:"shell"`
	Args       []string          `json:"args"`
	Env        map[string]string `json:"env"`
	Persistent bool              `json:"persistent"`
	Visible    bool              `json:"visible"`
	Size       *Size             `json:"size,omitempty"`
	History    *string           `json:"history,omitempty"`
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	c := *s
	c.Args = append([]string{}, s.Args...)
	c.Env = make(map[string]string, len(s.Env))
	for k, v := range s.Env {
		c.Env[k] = v
	}
	if s.Size != nil {
		size := *s.Size
		c.Size = &size
	}
	if s.History != nil {
		h := *s.History
		c.History = &h
	}
	return &c
}

// normalize enforces the persisted shape: history is never kept for
// multiplexer-backed sessions and collections are never null.
func (s *SessionState) normalize() {
	if s.Persistent {
		s.History = nil
	}
	if s.Args == nil {
		s.Args = []string{}
	}
	if s.Env == nil {
		s.Env = map[string]string{}
	}
}

// Encode serializes s as JSON.
func Encode(s *SessionState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil state", ErrInvalid)
	}
	c := s.Clone()
	c.normalize()
	data, err := sonic.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

// Decode validates data against the session schema and parses it.
func Decode(data []byte) (*SessionState, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}

	var s SessionState
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.normalize()
	return &s, nil
}

var schemaLoader = gojsonschema.NewStringLoader(sessionSchema)

const sessionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "cwd", "shell", "args", "persistent"],
  "properties": {
    "id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$", "maxLength": 96},
    "title": {"type": "string"},
    "cwd": {"type": "string"},
    "shell": {"type": "string", "minLength": 1},
    "args": {"type": "array", "items": {"type": "string"}},
    "env": {"type": "object", "additionalProperties": {"type": "string"}},
    "persistent": {"type": "boolean"},
    "visible": {"type": "boolean"},
    "size": {
      "type": "object",
      "required": ["cols", "rows"],
      "properties": {
        "cols": {"type": "integer", "minimum": 1},
        "rows": {"type": "integer", "minimum": 1}
      }
    },
    "history": {"type": "string"}
  }
}`
