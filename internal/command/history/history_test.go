package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/internal/storage"
	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/cmdmux/pkg/cmderr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = cmd.Actor{ID: "u1", Name: "Alice", Interactive: true}
	bob   = cmd.Actor{ID: "u2", Name: "Bob", Interactive: true}
)

func TestHistory_Audited(t *testing.T) {
	st, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "datastore.json"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := cmdtest.New(t, alice, bob)
	h.Grant(alice, "cmd.history")
	d := cmd.NewDispatcher(h.Registry(t, New(st)), cmd.WithAuditor(st))

	require.NoError(t, h.Run(t, d, alice, "history"))
	assert.Equal(t, "[History] No commands recorded for Alice", h.Last(t, alice.ID))

	err = h.Run(t, d, alice, "history bob")
	assert.True(t, cmderr.Is(err, cmderr.KindNoPermission))

	require.NoError(t, h.Run(t, d, alice, "hist"))
	replies := h.Replies(alice.ID)
	require.GreaterOrEqual(t, len(replies), 3)
	assert.Equal(t, "[History] Recent commands of Alice", replies[len(replies)-3])
	assert.Contains(t, replies[len(replies)-2], "message history bob")
	assert.Contains(t, replies[len(replies)-1], "ok history")

	err = h.Run(t, d, alice, "history failures")
	assert.True(t, cmderr.Is(err, cmderr.KindNoPermission))

	require.NoError(t, h.Run(t, d, cmdtest.Console, "history failures"))
	replies = h.Replies(cmdtest.Console.ID)
	assert.Equal(t, "[History] Recent failures", replies[0])
	assert.Contains(t, replies[1], "history failures by Alice")
	assert.Contains(t, replies[2], "history bob by Alice")
}

type brokenStore struct{}

func (brokenStore) FetchHistory(string) ([]storage.HistoryEntry, error) {
	return nil, errors.New("disk on fire")
}

func (brokenStore) Failures(int) ([]storage.HistoryEntry, error) { return nil, nil }

func TestHistory_StoreError(t *testing.T) {
	h := cmdtest.New(t, alice)
	h.Grant(alice, "cmd.history")
	d := h.Dispatcher(t, New(brokenStore{}))

	err := h.Run(t, d, alice, "history")
	assert.ErrorContains(t, err, "disk on fire")
	assert.Equal(t, "An internal error occurred while attempting to execute this command", h.Last(t, alice.ID))

	require.NoError(t, h.Run(t, d, cmdtest.Console, "history failures"))
	assert.Equal(t, "[History] No failed commands", h.Last(t, cmdtest.Console.ID))
}
