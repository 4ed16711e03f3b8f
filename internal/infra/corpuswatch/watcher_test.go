package corpuswatch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherRebuildsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faq.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	rebuilt := make(chan struct{}, 4)
	w := New(path, 20*time.Millisecond, func(context.Context) error {
		rebuilt <- struct{}{}
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(`{"q":"a"}`), 0o600))

	select {
	case <-rebuilt:
	case <-time.After(3 * time.Second):
		t.Fatal("rebuild not triggered")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "faq.json"), 0, func(context.Context) error { return nil }, nil)
	require.Error(t, w.Run(context.Background()))
}
