package types

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCallActionRequest(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantErr  bool
		wantArgs []any
	}{
		{
			name:     "positional args",
			payload:  `{"action":"volume","args":[1,"up",true]}`,
			wantArgs: []any{float64(1), "up", true},
		},
		{
			name:     "null args",
			payload:  `{"action":"play","args":null}`,
			wantArgs: nil,
		},
		{
			name:     "missing args",
			payload:  `{"action":"play"}`,
			wantArgs: nil,
		},
		{
			name:    "missing action",
			payload: `{"args":[]}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			payload: `{"action":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeCallActionRequest([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, req.Args)
		})
	}
}

func TestOutboundEventEncode(t *testing.T) {
	data, err := OutboundEvent{Action: "title", Args: map[string]any{"text": "Now playing"}}.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Equal(t, "title", decoded["action"])
	assert.Equal(t, map[string]any{"text": "Now playing"}, decoded["args"])

	data, err = OutboundEvent{Action: "empty"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"empty","args":{}}`, string(data))
}

func TestServerMessages(t *testing.T) {
	msg := NewUpdateMessage("media/vlc", OutboundEvent{Action: "info", Args: map[string]any{"text": "x"}})
	data, err := msg.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update","remote":"media/vlc","events":[{"action":"info","args":{"text":"x"}}]}`, string(data))

	msg = NewErrorMessage("media/vlc", ErrMissingAction)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, ErrMissingAction.Error(), msg.Message)
}

func TestRemoteMetaCompatibility(t *testing.T) {
	tests := []struct {
		name      string
		platforms []Platform
		host      Platform
		want      bool
	}{
		{"no platforms", nil, PlatformLinux, true},
		{"matching", []Platform{PlatformWindows, PlatformLinux}, PlatformLinux, true},
		{"legacy", []Platform{PlatformLegacy}, PlatformMac, true},
		{"other", []Platform{PlatformWindows}, PlatformLinux, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := RemoteMeta{Platforms: tt.platforms}
			assert.Equal(t, tt.want, meta.IsCompatible(tt.host))
		})
	}
}

func TestParsePlatform(t *testing.T) {
	p, ok := ParsePlatform(" Windows ")
	assert.True(t, ok)
	assert.Equal(t, PlatformWindows, p)

	_, ok = ParsePlatform("amiga")
	assert.False(t, ok)
}

func TestLimitsMemoryBytes(t *testing.T) {
	assert.Equal(t, uint64(64<<20), DefaultLimits().MemoryBytes())
	assert.Zero(t, Limits{}.MemoryBytes())
}
