// Package protocol defines the message envelope exchanged between a terminal
// session and its UI surface.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Message types sent by the surface.
const (
	TypeReady   = "ready"
	TypeStdin   = "stdin"
	TypeResize  = "resize"
	TypeTitle   = "title"
	TypeHistory = "history"
	TypeDetach  = "detach"
)

// Message types sent by the host.
const (
	TypeStdout          = "stdout"
	TypeViewStateChange = "viewStateChange"
	TypeThemeChange     = "themeChange"
	TypePreload         = "preload"
	TypePanelTitle      = "panelTitle"
	TypeWarning         = "warning"
)

// bufferType tags the byte array wrapper used for binary payloads.
const bufferType = "Buffer"

var (
	// ErrMalformed is returned when a payload does not match its message type.
	ErrMalformed = errors.New("malformed payload")
)

// Message is the {type, data} envelope.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ReadyPayload is sent once the surface can render.
type ReadyPayload struct {
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
	SessionID string `json:"sessionId,omitempty"`
}

// ResizePayload carries new surface dimensions.
type ResizePayload struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// TitlePayload carries a title, raw from the process or formatted for chrome.
type TitlePayload struct {
	Title string `json:"title"`
}

// HistoryPayload carries the surface's serialized scrollback.
type HistoryPayload struct {
	History string `json:"history"`
}

// VisibilityPayload reports whether the surface is foregrounded.
type VisibilityPayload struct {
	Visible bool `json:"visible"`
}

// WarningPayload is a user-facing warning shown by the host chrome.
type WarningPayload struct {
	Message string `json:"message"`
}

type bufferWrapper struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// New builds a message, marshaling payload into Data. A nil payload leaves
// Data empty.
func New(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	msg.Data = data
	return msg, nil
}

// Decode unmarshals Data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: %w: empty data", m.Type, ErrMalformed)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s: %w: %v", m.Type, ErrMalformed, err)
	}
	return nil
}

// Stdout builds a stdout message. Valid UTF-8 travels as a string, anything
// else as a byte array wrapper.
func Stdout(chunk []byte) Message {
	var data []byte
	if utf8.Valid(chunk) {
		data, _ = json.Marshal(string(chunk))
	} else {
		data, _ = json.Marshal(wrap(chunk))
	}
	return Message{Type: TypeStdout, Data: data}
}

// DecodeBytes reads a byte payload that is either a JSON string or a
// {type: "Buffer", data: [...]} wrapper.
func DecodeBytes(data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrMalformed)
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return []byte(s), nil
	}

	var w bufferWrapper
	if err := json.Unmarshal(data, &w); err != nil || w.Type != bufferType {
		return nil, fmt.Errorf("%w: expected string or byte buffer", ErrMalformed)
	}
	out := make([]byte, len(w.Data))
	for i, b := range w.Data {
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("%w: byte %d out of range", ErrMalformed, b)
		}
		out[i] = byte(b)
	}
	return out, nil
}

func wrap(chunk []byte) bufferWrapper {
	data := make([]int, len(chunk))
	for i, b := range chunk {
		data[i] = int(b)
	}
	return bufferWrapper{Type: bufferType, Data: data}
}
