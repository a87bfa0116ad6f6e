package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    []byte
		wantErr bool
	}{
		{name: "string", data: `"ls -la\r"`, want: []byte("ls -la\r")},
		{name: "buffer wrapper", data: `{"type":"Buffer","data":[27,91,65]}`, want: []byte{27, 91, 65}},
		{name: "empty string", data: `""`, want: []byte{}},
		{name: "wrong wrapper type", data: `{"type":"Blob","data":[1]}`, wantErr: true},
		{name: "byte out of range", data: `{"type":"Buffer","data":[256]}`, wantErr: true},
		{name: "number", data: `42`, wantErr: true},
		{name: "empty", data: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBytes(json.RawMessage(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStdoutEncoding(t *testing.T) {
	msg := Stdout([]byte("héllo\n"))
	assert.Equal(t, TypeStdout, msg.Type)
	assert.JSONEq(t, `"héllo\n"`, string(msg.Data))

	raw := []byte{0xff, 0x00, 'a'}
	msg = Stdout(raw)
	assert.JSONEq(t, `{"type":"Buffer","data":[255,0,97]}`, string(msg.Data))

	back, err := DecodeBytes(msg.Data)
	require.NoError(t, err)
	assert.Equal(t, raw, back)
}

func TestNewAndDecode(t *testing.T) {
	msg, err := New(TypeReady, ReadyPayload{Cols: 80, Rows: 24, SessionID: "abc"})
	require.NoError(t, err)

	wire, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ready","data":{"cols":80,"rows":24,"sessionId":"abc"}}`, string(wire))

	var ready ReadyPayload
	require.NoError(t, msg.Decode(&ready))
	assert.Equal(t, 80, ready.Cols)
	assert.Equal(t, "abc", ready.SessionID)
}

func TestNewWithoutPayload(t *testing.T) {
	msg, err := New(TypeThemeChange, nil)
	require.NoError(t, err)

	wire, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"themeChange"}`, string(wire))

	var p ResizePayload
	assert.ErrorIs(t, msg.Decode(&p), ErrMalformed)
}
