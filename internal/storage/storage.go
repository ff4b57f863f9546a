// /internal/storage/storage.go
package storage

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/keshon/cmdmux/pkg/cmd"
	"github.com/keshon/datastore"
)

const (
	historyLimit int = 20
	recentLimit  int = 100
	recentKey        = "recent"
	saveInterval     = time.Minute
	actorPrefix      = "actor:"
)

// Storage keeps a bounded command history per actor and across all actors.
// It implements cmd.Auditor.
type Storage struct {
	ds     *datastore.DataStore
	cancel context.CancelFunc
	mu     sync.Mutex
}

// HistoryEntry is one audited command.
type HistoryEntry struct {
	ActorID   string        `json:"actor_id"`
	ActorName string        `json:"actor_name"`
	Command   string        `json:"command"`
	Alias     string        `json:"alias"`
	Line      string        `json:"line"`
	Pattern   string        `json:"pattern"`
	Async     bool          `json:"async"`
	Outcome   string        `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Datetime  time.Time     `json:"datetime"`
}

// History is the stored value under every key.
type History struct {
	Entries []HistoryEntry `json:"entries"`
}

var _ cmd.Auditor = (*Storage)(nil)

// New opens the store at filePath. The background autosave runs until ctx
// is done or Close is called.
func New(ctx context.Context, filePath string) (*Storage, error) {
	ctx, cancel := context.WithCancel(ctx)
	ds, err := datastore.New(ctx, filePath,
		datastore.WithSaveInterval(saveInterval),
		datastore.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Storage{ds: ds, cancel: cancel}, nil
}

// Close stops the autosave and flushes to disk. The datastore waits for
// its autosave goroutine, so the context is cancelled first.
func (s *Storage) Close() error {
	s.cancel()
	return s.ds.Close()
}

func (s *Storage) getOrCreate(key string) (*History, error) {
	var h History
	if _, err := s.ds.Get(key, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *Storage) append(key string, e HistoryEntry, limit int) error {
	h, err := s.getOrCreate(key)
	if err != nil {
		return err
	}
	entries := append(append([]HistoryEntry(nil), h.Entries...), e)
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return s.ds.Set(key, History{Entries: entries})
}

// Record appends r to the actor's history and the global recent list.
func (s *Storage) Record(_ context.Context, r cmd.Record) error {
	e := HistoryEntry{
		ActorID:   r.Actor.ID,
		ActorName: r.Actor.Name,
		Command:   r.Command,
		Alias:     r.Alias,
		Line:      r.Line,
		Pattern:   r.Pattern,
		Async:     r.Async,
		Outcome:   r.Outcome,
		Error:     r.Error,
		Duration:  r.Duration,
		Datetime:  r.Time,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.append(actorPrefix+r.Actor.ID, e, historyLimit); err != nil {
		return err
	}
	return s.append(recentKey, e, recentLimit)
}

// FetchHistory returns the actor's most recent commands, oldest first.
func (s *Storage) FetchHistory(actorID string) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.getOrCreate(actorPrefix + actorID)
	if err != nil {
		return nil, err
	}
	return h.Entries, nil
}

// Recent returns up to limit commands across all actors, newest first.
func (s *Storage) Recent(limit int) ([]HistoryEntry, error) {
	s.mu.Lock()
	h, err := s.getOrCreate(recentKey)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := append([]HistoryEntry(nil), h.Entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Datetime.After(out[j].Datetime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Failures returns the stored commands whose outcome is not "ok", newest first.
func (s *Storage) Failures(limit int) ([]HistoryEntry, error) {
	all, err := s.Recent(0)
	if err != nil {
		return nil, err
	}
	var out []HistoryEntry
	for _, e := range all {
		if e.Outcome != "ok" {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
