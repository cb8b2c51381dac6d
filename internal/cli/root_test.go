package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/livefeed/auth"
	"github.com/jacentio/livefeed/feed"
	"github.com/jacentio/livefeed/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "livefeed", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"watch", "post", "token"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	tests := []struct {
		name string
		def  string
	}{
		{"collection", "messages"},
		{"table", "livefeed_messages"},
		{"index", "feed_created_at"},
		{"shards", "1"},
		{"channel", "livefeed:changes"},
		{"issuer", "livefeed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := cmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestTokenCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--signing-key", "dev", "--uid", "user-1", "--name", "Ada"})

	require.NoError(t, cmd.Execute())

	p := auth.NewJWTProvider("dev", "livefeed", nil)
	id, err := p.Verify(string(bytes.TrimSpace(out.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UID)
	assert.Equal(t, "Ada", id.DisplayName)
}

func TestRegistryAndFeedConfig(t *testing.T) {
	opts := &RootOptions{Collection: "chat", Table: "chat_table", Index: "chat_feed"}

	coll, ok := registry(opts).Lookup("chat")
	require.True(t, ok)
	assert.Equal(t, "chat_table", coll.TableName)
	index, ok := coll.IndexFor("created_at")
	require.True(t, ok)
	assert.Equal(t, "chat_feed", index)

	cfg := feedConfig(opts)
	assert.Equal(t, "chat", cfg.Collection)
	assert.Equal(t, feed.DefaultConfig().PageSize, cfg.PageSize)
}

func TestAuthProvider_RequiresKey(t *testing.T) {
	_, err := authProvider(&RootOptions{})
	require.Error(t, err)
}

func TestRenderer_PrintsOnce(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	item := store.Item{ID: "a", Fields: map[string]any{"author_id": "u1", "message": "hi", "created_at": ts}}

	r.render(feed.State{Items: []store.Item{item}})
	r.render(feed.State{Items: []store.Item{item}})

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	assert.Contains(t, string(lines[0]), "u1: hi")
}

func TestFormatItem_Anonymous(t *testing.T) {
	got := formatItem(store.Item{ID: "a", Fields: map[string]any{"message": "hi"}})
	assert.Equal(t, "[--:--:--] anonymous: hi", got)
}
