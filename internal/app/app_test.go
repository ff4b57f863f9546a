package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/keshon/cmdmux/internal/command/cmdtest"
	"github.com/keshon/cmdmux/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, vars map[string]string) (*App, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	base := map[string]string{
		"STORAGE_PATH":     filepath.Join(dir, "datastore.json"),
		"PERMISSIONS_FILE": filepath.Join(dir, "permissions.yaml"),
		"TICK":             "1ms",
	}
	for k, v := range vars {
		base[k] = v
	}
	cfg, err := config.FromMap(base)
	require.NoError(t, err)

	var logs bytes.Buffer
	a, err := New(cfg, WithLogOutput(&logs))
	require.NoError(t, err)
	return a, &logs
}

func TestApp_Lifecycle(t *testing.T) {
	a, logs := newApp(t, map[string]string{"CMDMUX_ENV": "dev"})
	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Scheduler.Running())
	assert.True(t, a.prune.Running())

	h := cmdtest.New(t)
	d := a.Dispatcher(h.Host(), a.Handlers()...)
	assert.Contains(t, logs.String(), "registered commands")

	require.NoError(t, h.Run(t, d, cmdtest.Console, "/debug echo hi"))
	assert.Equal(t, "[Debug] hi", h.Last(t, cmdtest.Console.ID))

	entries, err := a.Storage.FetchHistory(cmdtest.Console.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/debug echo hi", entries[0].Line)
	assert.Equal(t, "ok", entries[0].Outcome)

	a.Maintenance.Enable("")
	require.NoError(t, h.Run(t, d, cmdtest.Console, "maintenance"))
	assert.Equal(t, "[Maintenance] Maintenance is on", h.Last(t, cmdtest.Console.ID))

	require.NoError(t, a.Close())
	assert.False(t, a.Scheduler.Running())
	assert.Empty(t, d.Registry().Commands())
}

func TestApp_ProdHasNoDebug(t *testing.T) {
	a, _ := newApp(t, nil)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Close() })

	h := cmdtest.New(t)
	d := a.Dispatcher(h.Host(), a.Handlers()...)
	_, ok := d.Registry().Lookup("/debug")
	assert.False(t, ok)
	_, ok = d.Registry().Lookup("history")
	assert.True(t, ok)
}
