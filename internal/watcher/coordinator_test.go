package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for RebuildCoordinator:
// - File change triggers Rebuild() with the changed files
// - The watcher is paused for the duration of a rebuild
// - onRebuild receives the stats of a successful rebuild
// - Rebuild errors are logged, not fatal, and onRebuild is skipped
// - Empty change lists are ignored
// - Watcher start errors are propagated
// - Context cancellation stops the watcher

type mockFileWatcher struct {
	mu         sync.Mutex
	startErr   error
	callback   func(files []string)
	calls      []string
	stopCalled bool
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = callback
	return m.startErr
}

func (m *mockFileWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled = true
	return nil
}

func (m *mockFileWatcher) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
}

func (m *mockFileWatcher) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "resume")
}

func (m *mockFileWatcher) trigger(files []string) {
	m.mu.Lock()
	cb := m.callback
	m.mu.Unlock()
	cb(files)
}

type mockRebuilder struct {
	mu      sync.Mutex
	err     error
	changed [][]string
	watcher *mockFileWatcher
	order   []string
}

func (m *mockRebuilder) Rebuild(ctx context.Context, changed []string) (*RebuildStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, changed)
	if m.watcher != nil {
		m.watcher.mu.Lock()
		m.order = append(append([]string(nil), m.watcher.calls...), "rebuild")
		m.watcher.mu.Unlock()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &RebuildStats{Lines: 3, Symbols: 2, SnapshotID: "snap-1"}, nil
}

func startCoordinator(t *testing.T, files *mockFileWatcher, rebuilder *mockRebuilder, onRebuild func(*RebuildStats)) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewRebuildCoordinator(files, rebuilder, onRebuild).Start(ctx)
	}()

	require.Eventually(t, func() bool {
		files.mu.Lock()
		defer files.mu.Unlock()
		return files.callback != nil
	}, time.Second, 5*time.Millisecond)
	return cancel, done
}

func TestRebuildCoordinator_FileChangeTriggersRebuild(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	rebuilder := &mockRebuilder{watcher: files}
	var got *RebuildStats
	cancel, done := startCoordinator(t, files, rebuilder, func(s *RebuildStats) { got = s })

	changed := []string{"/work/prog.c", "/work/prog.c.h"}
	files.trigger(changed)

	rebuilder.mu.Lock()
	require.Len(t, rebuilder.changed, 1)
	assert.Equal(t, changed, rebuilder.changed[0])
	assert.Equal(t, []string{"pause", "rebuild"}, rebuilder.order)
	rebuilder.mu.Unlock()

	files.mu.Lock()
	assert.Equal(t, []string{"pause", "resume"}, files.calls)
	files.mu.Unlock()

	require.NotNil(t, got)
	assert.Equal(t, "snap-1", got.SnapshotID)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, files.stopCalled)
}

func TestRebuildCoordinator_RebuildErrorDoesNotCrash(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	rebuilder := &mockRebuilder{err: errors.New("missing prog.c")}
	called := false
	cancel, done := startCoordinator(t, files, rebuilder, func(*RebuildStats) { called = true })

	files.trigger([]string{"/work/prog.c"})
	files.trigger([]string{"/work/prog.c"})

	rebuilder.mu.Lock()
	assert.Len(t, rebuilder.changed, 2)
	rebuilder.mu.Unlock()
	assert.False(t, called)

	files.mu.Lock()
	assert.Equal(t, []string{"pause", "resume", "pause", "resume"}, files.calls)
	files.mu.Unlock()

	cancel()
	<-done
}

func TestRebuildCoordinator_EmptyChangeListIgnored(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{}
	rebuilder := &mockRebuilder{}
	cancel, done := startCoordinator(t, files, rebuilder, nil)

	files.trigger(nil)

	rebuilder.mu.Lock()
	assert.Empty(t, rebuilder.changed)
	rebuilder.mu.Unlock()

	cancel()
	<-done
}

func TestRebuildCoordinator_StartError(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{startErr: errors.New("too many open files")}
	err := NewRebuildCoordinator(files, &mockRebuilder{}, nil).Start(context.Background())

	assert.EqualError(t, err, "too many open files")
	assert.True(t, files.stopCalled)
}
