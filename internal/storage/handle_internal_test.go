package storage

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createEmpty(t *testing.T, path string) string {
	t.Helper()
	db, err := Create(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func TestFinishRetirement_StatusReadsDoNotWaitOnUnlink(t *testing.T) {
	dir := t.TempDir()
	pathA := createEmpty(t, filepath.Join(dir, "a.db"))
	pathB := createEmpty(t, filepath.Join(dir, "b.db"))
	ctx := context.Background()

	poolA, err := OpenPool(ctx, pathA, 2)
	require.NoError(t, err)
	poolB, err := OpenPool(ctx, pathB, 2)
	require.NoError(t, err)

	h := NewHandle(poolA, HandleOptions{
		DrainInterval: 10 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = h.Close() })

	type status struct {
		primary  string
		draining []string
	}
	observed := make(chan status, 1)
	var detachedExists, originalExists bool

	retireHook = func(path string) {
		_, err := os.Stat(path)
		originalExists = err == nil
		_, err = os.Stat(path + ".retired-" + poolA.ID())
		detachedExists = err == nil

		done := make(chan status, 1)
		go func() { done <- status{primary: h.PrimaryPath(), draining: h.Draining()} }()
		select {
		case s := <-done:
			observed <- s
		case <-time.After(2 * time.Second):
			close(observed)
		}
	}
	t.Cleanup(func() { retireHook = nil })

	_, err = h.Switch(poolB)
	require.NoError(t, err)
	h.Wait()

	s, ok := <-observed
	require.True(t, ok, "status reads blocked while the retired file was being removed")
	assert.Equal(t, pathB, s.primary)
	assert.Empty(t, s.draining)
	assert.False(t, originalExists, "file is moved off its path before mu is released")
	assert.True(t, detachedExists)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "a.db", "retired file and siblings are removed")
	}
	assert.FileExists(t, pathB)
}

func TestFinishRetirement_KeepsPathReservedBeforeDetach(t *testing.T) {
	dir := t.TempDir()
	pathA := createEmpty(t, filepath.Join(dir, "a.db"))
	pathB := createEmpty(t, filepath.Join(dir, "b.db"))
	ctx := context.Background()

	poolA, err := OpenPool(ctx, pathA, 2)
	require.NoError(t, err)
	poolB, err := OpenPool(ctx, pathB, 2)
	require.NoError(t, err)

	h := NewHandle(poolA, HandleOptions{
		DrainInterval: 10 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = h.Close() })

	// Hold a borrower so the reservation lands before the pool drains
	borrowed, err := h.Acquire()
	require.NoError(t, err)

	_, err = h.Switch(poolB)
	require.NoError(t, err)

	release := h.Reserve(pathA)
	defer release()
	h.Release(borrowed)
	h.Wait()

	assert.FileExists(t, pathA)
	_, err = os.Stat(pathA + ".retired-" + poolA.ID())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRetire_DrainAttemptsCountsChecks(t *testing.T) {
	dir := t.TempDir()
	pathA := createEmpty(t, filepath.Join(dir, "a.db"))
	pathB := createEmpty(t, filepath.Join(dir, "b.db"))
	ctx := context.Background()

	poolA, err := OpenPool(ctx, pathA, 2)
	require.NoError(t, err)
	poolB, err := OpenPool(ctx, pathB, 2)
	require.NoError(t, err)

	var logs bytes.Buffer
	h := NewHandle(poolA, HandleOptions{
		DrainInterval: time.Millisecond,
		DrainAttempts: 3,
		Logger:        slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	t.Cleanup(func() { _ = h.Close() })

	borrowed, err := h.Acquire()
	require.NoError(t, err)
	defer h.Release(borrowed)

	_, err = h.Switch(poolB)
	require.NoError(t, err)
	h.Wait()

	out := logs.String()
	assert.Equal(t, 2, strings.Count(out, "old pool still in use"), "one sleep between each pair of checks")
	assert.Contains(t, out, "attempts=3")
	assert.FileExists(t, pathA)
}
