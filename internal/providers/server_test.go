package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerUpdate(t *testing.T) {
	h := newHost(t)
	rec := &recorder{}
	h.Publisher = rec
	L := newLState(t, NewServer(h))

	require.NoError(t, L.DoString(`
		server.update(
			{ id = "volume", progress = 40, text = "40%" },
			{ id = "mute", checked = true, items = { "a", "b" } }
		)
	`))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "volume", events[0].Action)
	assert.Equal(t, int64(40), events[0].Args["progress"])
	assert.Equal(t, "40%", events[0].Args["text"])
	assert.Equal(t, "mute", events[1].Action)
	assert.Equal(t, true, events[1].Args["checked"])
	assert.Equal(t, []any{"a", "b"}, events[1].Args["items"])
}

func TestServerUpdateNumericID(t *testing.T) {
	h := newHost(t)
	rec := &recorder{}
	h.Publisher = rec
	L := newLState(t, NewServer(h))

	require.NoError(t, L.DoString(`server.update({ id = 7 })`))
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "7", rec.Events()[0].Action)
}

func TestServerUpdateRejectsMissingID(t *testing.T) {
	h := newHost(t)
	rec := &recorder{}
	h.Publisher = rec
	L := newLState(t, NewServer(h))

	tests := []struct {
		name string
		code string
		msg  string
	}{
		{"missing id", `server.update({ text = "x" })`, "missing 'id'"},
		{"table id", `server.update({ id = {} })`, "missing 'id'"},
		{"not a table", `server.update("volume")`, "table expected"},
		{"second bad", `server.update({ id = "ok" }, { text = "x" })`, "missing 'id'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := L.DoString(tt.code)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
	// a batch with one bad table publishes nothing
	assert.Empty(t, rec.Events())
}
