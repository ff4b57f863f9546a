package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	s, err := New(context.Background(), path)
	require.NoError(t, err)
	return s, path
}

func record(actor cmd.Actor, line, outcome string, at time.Time) cmd.Record {
	return cmd.Record{Time: at, Actor: actor, Command: "Teleport", Alias: "tp", Line: line, Outcome: outcome}
}

func TestStorage_RecordAndFetch(t *testing.T) {
	s, _ := newStorage(t)
	defer s.Close()

	alice := cmd.Actor{ID: "u1", Name: "Alice"}
	bob := cmd.Actor{ID: "u2", Name: "Bob"}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, record(alice, "tp bob", "ok", base)))
	require.NoError(t, s.Record(ctx, record(bob, "tp nobody", "message", base.Add(time.Second))))
	require.NoError(t, s.Record(ctx, record(alice, "tp", "ok", base.Add(2*time.Second))))

	history, err := s.FetchHistory(alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tp bob", history[0].Line)
	assert.Equal(t, "Alice", history[0].ActorName)

	recent, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "tp", recent[0].Line)
	assert.Equal(t, "tp nobody", recent[1].Line)

	failures, err := s.Failures(0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "Bob", failures[0].ActorName)

	empty, err := s.FetchHistory("nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorage_HistoryIsBounded(t *testing.T) {
	s, _ := newStorage(t)
	defer s.Close()

	alice := cmd.Actor{ID: "u1", Name: "Alice"}
	base := time.Now()
	for i := range historyLimit + 5 {
		require.NoError(t, s.Record(context.Background(), record(alice, fmt.Sprintf("roll %d", i), "ok", base.Add(time.Duration(i)))))
	}

	history, err := s.FetchHistory(alice.ID)
	require.NoError(t, err)
	require.Len(t, history, historyLimit)
	assert.Equal(t, "roll 5", history[0].Line)
	assert.Equal(t, fmt.Sprintf("roll %d", historyLimit+4), history[historyLimit-1].Line)
}

func TestStorage_SurvivesReopen(t *testing.T) {
	s, path := newStorage(t)
	alice := cmd.Actor{ID: "u1", Name: "Alice"}
	require.NoError(t, s.Record(context.Background(), record(alice, "tp bob", "ok", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := New(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()

	history, err := reopened.FetchHistory(alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tp bob", history[0].Line)
}

func TestStorage_CloseFlushesWithLiveContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "datastore.json")

	s, err := New(ctx, path)
	require.NoError(t, err)
	alice := cmd.Actor{ID: "u1", Name: "Alice"}
	require.NoError(t, s.Record(ctx, record(alice, "tp", "ok", time.Now())))

	done := make(chan error, 1)
	go func() { done <- s.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked while the parent context was still live")
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tp")

	assert.Error(t, s.Record(ctx, record(alice, "tp", "ok", time.Now())), "writes after Close fail")
}
