package twin

import (
	"context"
	"sync"
	"time"

	"github.com/twinbridge/twinbridge-core/internal/infrastructure/logging"
)

// LockName is the cluster-wide mutex guarding attribute polling. Only
// one instance runs a polling pass at a time; the others skip the tick.
const LockName = "deviceAttributeSync"

// Locker is the non-blocking cluster lock the scheduler coordinates on.
// Implemented by lock.Manager.
type Locker interface {
	TryAcquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// Recorder receives per-run polling telemetry. Implemented by
// influxdb.Client; a nil Recorder disables recording.
type Recorder interface {
	WritePollRun(tenant string, synced int, failed int, elapsed time.Duration)
}

// RunInfo summarizes the most recent completed polling pass.
type RunInfo struct {
	// Time is when the pass finished. Zero until the first pass runs.
	Time time.Time `json:"time"`

	// Synced counts devices whose attributes merged successfully.
	Synced int `json:"synced"`

	// Failed counts devices that errored during the pass.
	Failed int `json:"failed"`
}

// SchedulerConfig carries the scheduler's tunables.
type SchedulerConfig struct {
	// Interval between polling ticks.
	Interval time.Duration

	// PageSize bounds how many flagged devices one tenant pass handles.
	PageSize int
}

// Scheduler periodically mirrors requested twin attributes for every
// configured tenant.
//
// Each tick first try-acquires the shared cluster lock; when another
// instance holds it the tick is skipped outright rather than queued, so
// redundant instances never pile up polling passes. Within a pass,
// tenant and device failures are isolated: one broken hub or device
// never stops the rest of the fleet from syncing.
type Scheduler struct {
	syncer  *Syncer
	store   AttributeStore
	readers map[string]TwinReader
	lock    Locker
	rec     Recorder
	cfg     SchedulerConfig
	log     *logging.Logger

	mu      sync.RWMutex
	lastRun RunInfo

	wg sync.WaitGroup
}

// NewScheduler wires a Scheduler.
//
// Parameters:
//   - syncer: Per-device twin syncer
//   - store: Local registry access for paging flagged devices
//   - readers: Twin sources keyed by tenant name
//   - lock: Cluster lock manager
//   - rec: Optional run recorder; nil disables telemetry
//   - cfg: Interval and page size
//   - log: Parent logger
func NewScheduler(syncer *Syncer, store AttributeStore, readers map[string]TwinReader, lock Locker, rec Recorder, cfg SchedulerConfig, log *logging.Logger) *Scheduler {
	return &Scheduler{
		syncer:  syncer,
		store:   store,
		readers: readers,
		lock:    lock,
		rec:     rec,
		cfg:     cfg,
		log:     log.With("component", "attribute_scheduler"),
	}
}

// Start launches the polling loop. It returns immediately; the loop
// stops when ctx is cancelled. Call Wait to block until shutdown
// completes.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.log.Info("attribute polling started",
			"interval", s.cfg.Interval.String(),
			"page_size", s.cfg.PageSize,
			"tenants", len(s.readers))

		for {
			select {
			case <-ctx.Done():
				s.log.Info("attribute polling stopped")
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Wait blocks until the polling loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// LastRun returns a snapshot of the most recent completed pass.
func (s *Scheduler) LastRun() RunInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// tick runs one polling pass if the cluster lock is free.
func (s *Scheduler) tick(ctx context.Context) {
	acquired, err := s.lock.TryAcquire(ctx, LockName)
	if err != nil {
		s.log.Error("cluster lock acquire failed", "lock", LockName, "error", err)
		return
	}
	if !acquired {
		s.log.Debug("cluster lock held elsewhere, skipping tick", "lock", LockName)
		return
	}
	defer func() {
		// Release must still reach the database when the tick was cut
		// short by shutdown, or the lease lingers until TTL expiry.
		if err := s.lock.Release(context.WithoutCancel(ctx), LockName); err != nil {
			s.log.Error("cluster lock release failed", "lock", LockName, "error", err)
		}
	}()

	start := time.Now()
	var totalSynced, totalFailed int

	for tenant, reader := range s.readers {
		tenantStart := time.Now()
		synced, failed := s.pollTenant(ctx, tenant, reader)
		totalSynced += synced
		totalFailed += failed

		if s.rec != nil {
			s.rec.WritePollRun(tenant, synced, failed, time.Since(tenantStart))
		}

		if ctx.Err() != nil {
			return
		}
	}

	s.mu.Lock()
	s.lastRun = RunInfo{Time: time.Now(), Synced: totalSynced, Failed: totalFailed}
	s.mu.Unlock()

	if totalSynced > 0 || totalFailed > 0 {
		s.log.Info("attribute polling pass complete",
			"synced", totalSynced,
			"failed", totalFailed,
			"elapsed", time.Since(start).String())
	}
}

// pollTenant syncs one page of flagged devices for a single tenant.
func (s *Scheduler) pollTenant(ctx context.Context, tenant string, reader TwinReader) (synced int, failed int) {
	ids, err := s.store.PageDevicesWithAttributesRequested(ctx, tenant, s.cfg.PageSize)
	if err != nil {
		s.log.Error("paging flagged devices failed", "tenant", tenant, "error", err)
		return 0, 0
	}

	for _, id := range ids {
		if err := s.syncer.Sync(ctx, reader, tenant, id); err != nil {
			failed++
			s.log.Error("twin sync failed",
				"tenant", tenant,
				"controller_id", id,
				"error", err)
			continue
		}
		synced++
	}
	return synced, failed
}
