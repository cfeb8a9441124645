package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calls struct {
	mu  sync.Mutex
	got [][]string
}

func (c *calls) record(_ context.Context, changed []string) {
	c.mu.Lock()
	c.got = append(c.got, changed)
	c.mu.Unlock()
}

func (c *calls) snapshot() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.got...)
}

func startWatcher(t *testing.T, dir string) *calls {
	t.Helper()
	w, err := New(dir, WithDebounce(50*time.Millisecond), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c := &calls{}
	go func() { done <- w.Run(ctx, c.record) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return c
}

func TestWatcher_BatchesJSONChanges(t *testing.T) {
	dir := t.TempDir()
	c := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte(`x`), 0o644))

	require.Eventually(t, func() bool { return len(c.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)

	var seen []string
	for _, batch := range c.snapshot() {
		seen = append(seen, batch...)
	}
	assert.Contains(t, seen, "a.json")
	assert.Contains(t, seen, "b.json")
	assert.NotContains(t, seen, "notes.md")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	c := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte(`x`), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestRun_MissingDir(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Error(t, w.Run(context.Background(), func(context.Context, []string) {}))
}
