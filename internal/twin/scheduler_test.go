package twin

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockLock is a togglable in-process lock.
type mockLock struct {
	mu            sync.Mutex
	held          bool // simulates another instance holding the lock
	acquires      int
	releases      int
	releaseCtxErr error // ctx.Err() observed by the last Release
}

func (m *mockLock) TryAcquire(_ context.Context, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	return !m.held, nil
}

func (m *mockLock) Release(ctx context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	m.releaseCtxErr = ctx.Err()
	return nil
}

type recordedRun struct {
	tenant string
	synced int
	failed int
}

type mockRecorder struct {
	mu   sync.Mutex
	runs []recordedRun
}

func (m *mockRecorder) WritePollRun(tenant string, synced int, failed int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, recordedRun{tenant, synced, failed})
}

func newTestScheduler(store *mockStore, reader *mockReader, lock *mockLock, rec Recorder) *Scheduler {
	log := testLogger()
	return NewScheduler(
		NewSyncer(store, log),
		store,
		map[string]TwinReader{"tenant1": reader},
		lock,
		rec,
		SchedulerConfig{Interval: time.Hour, PageSize: 1000},
		log,
	)
}

func TestTickSyncsFlaggedDevices(t *testing.T) {
	store := newMockStore("ctrl-01", "ctrl-02")
	reader := &mockReader{reported: map[string]interface{}{"state": "on"}}
	lock := &mockLock{}
	rec := &mockRecorder{}
	s := newTestScheduler(store, reader, lock, rec)

	s.tick(context.Background())

	if len(store.merged) != 2 {
		t.Errorf("merged %d devices, want 2", len(store.merged))
	}
	if lock.acquires != 1 || lock.releases != 1 {
		t.Errorf("lock acquires/releases = %d/%d, want 1/1", lock.acquires, lock.releases)
	}

	last := s.LastRun()
	if last.Synced != 2 || last.Failed != 0 {
		t.Errorf("LastRun() = %+v, want Synced=2 Failed=0", last)
	}
	if last.Time.IsZero() {
		t.Error("LastRun().Time is zero after a completed pass")
	}

	if len(rec.runs) != 1 {
		t.Fatalf("recorder got %d runs, want 1", len(rec.runs))
	}
	if rec.runs[0].synced != 2 {
		t.Errorf("recorded synced = %d, want 2", rec.runs[0].synced)
	}
}

func TestTickSkippedWhenLockHeld(t *testing.T) {
	store := newMockStore("ctrl-01")
	reader := &mockReader{reported: map[string]interface{}{"state": "on"}}
	lock := &mockLock{held: true}
	s := newTestScheduler(store, reader, lock, nil)

	s.tick(context.Background())

	if len(store.merged) != 0 {
		t.Error("tick ran despite the lock being held elsewhere")
	}
	if lock.releases != 0 {
		t.Error("tick released a lock it never acquired")
	}
	if !s.LastRun().Time.IsZero() {
		t.Error("LastRun() updated for a skipped tick")
	}
}

func TestTickReleasesLockAfterCancellation(t *testing.T) {
	store := newMockStore("ctrl-01")
	reader := &mockReader{reported: map[string]interface{}{"state": "on"}}
	lock := &mockLock{}
	s := newTestScheduler(store, reader, lock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // shutdown mid-tick

	s.tick(ctx)

	if lock.releases != 1 {
		t.Fatal("lock not released after a cancelled tick")
	}
	if lock.releaseCtxErr != nil {
		t.Errorf("release ran with a dead context: %v", lock.releaseCtxErr)
	}
}

func TestTickIsolatesDeviceFailures(t *testing.T) {
	store := newMockStore("ctrl-01", "ctrl-02")
	// Reads succeed but every merge fails.
	store.mergeErr = context.DeadlineExceeded
	reader := &mockReader{reported: map[string]interface{}{"state": "on"}}
	lock := &mockLock{}
	s := newTestScheduler(store, reader, lock, nil)

	s.tick(context.Background())

	last := s.LastRun()
	if last.Failed != 2 || last.Synced != 0 {
		t.Errorf("LastRun() = %+v, want Synced=0 Failed=2", last)
	}
	if lock.releases != 1 {
		t.Error("lock not released after a failing pass")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := newMockStore()
	lock := &mockLock{}
	s := newTestScheduler(store, &mockReader{}, lock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after context cancellation")
	}
}
