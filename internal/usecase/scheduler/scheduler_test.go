package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/reconciler"
)

// fakeClock drives the cadence loops by hand: every loop blocks on the
// shared ticks channel, and the test fires ticks explicitly
type fakeClock struct {
	now   time.Time
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		now:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		ticks: make(chan time.Time),
	}
}

func (c *fakeClock) Now() time.Time                       { return c.now }
func (c *fakeClock) After(time.Duration) <-chan time.Time { return c.ticks }
func (c *fakeClock) tick()                                { c.ticks <- c.now }

// stubCampaignRepo lets tests block and count reconciliation passes.
// Only ListDue is ever reached; an empty due list stops the pass there.
type stubCampaignRepo struct {
	listDueCalls   atomic.Int64
	listDueStarted chan struct{}
	release        chan struct{}
}

func (r *stubCampaignRepo) ListDue(ctx context.Context, now time.Time) ([]*domain.Campaign, error) {
	r.listDueCalls.Add(1)
	if r.listDueStarted != nil {
		r.listDueStarted <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return nil, nil
}

func (r *stubCampaignRepo) Create(context.Context, *domain.Campaign) error { return nil }
func (r *stubCampaignRepo) GetByID(context.Context, uuid.UUID) (*domain.Campaign, error) {
	return nil, domain.ErrCampaignNotFound
}
func (r *stubCampaignRepo) List(context.Context, domain.CampaignFilter, domain.CampaignSort, domain.Page) ([]*domain.Campaign, error) {
	return nil, nil
}
func (r *stubCampaignRepo) Count(context.Context, domain.CampaignFilter) (int, error) {
	return 0, nil
}
func (r *stubCampaignRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (r *stubCampaignRepo) ApplyDonation(context.Context, *domain.Donation) (*domain.Campaign, error) {
	return nil, nil
}
func (r *stubCampaignRepo) ApplyWithdrawal(context.Context, *domain.Withdrawal) (*domain.Campaign, error) {
	return nil, nil
}
func (r *stubCampaignRepo) TransitionStatus(context.Context, uuid.UUID, domain.Status, domain.Status, *domain.LifecycleEvent) (*domain.Campaign, error) {
	return nil, nil
}

// stubEventRepo records maintenance calls
type stubEventRepo struct {
	pruneCutoffs chan time.Time
}

func (r *stubEventRepo) Append(context.Context, *domain.LifecycleEvent) error { return nil }
func (r *stubEventRepo) ListByCampaign(context.Context, uuid.UUID) ([]*domain.LifecycleEvent, error) {
	return nil, nil
}
func (r *stubEventRepo) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.pruneCutoffs <- cutoff
	return 3, nil
}

// stubLocker fails every Obtain with a fixed error
type stubLocker struct {
	err      error
	obtained chan struct{}
}

func (l *stubLocker) Obtain(context.Context, string, time.Duration, *redislock.Options) (*redislock.Lock, error) {
	l.obtained <- struct{}{}
	return nil, l.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// skipHook observes the debug line emitted when a tick is dropped
type skipHook struct {
	skipped chan struct{}
}

func (h *skipHook) Levels() []logrus.Level { return []logrus.Level{logrus.DebugLevel} }

func (h *skipHook) Fire(e *logrus.Entry) error {
	if strings.Contains(e.Message, "tick skipped") {
		h.skipped <- struct{}{}
	}
	return nil
}

func TestScheduler_TickTriggersReconcilePass(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{listDueStarted: make(chan struct{}, 2)}
	rec := reconciler.New(repo, testLogger())

	opts := Options{FastInterval: time.Minute}
	s := New(rec, &stubEventRepo{}, nil, clock, testLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	clock.tick()
	select {
	case <-repo.listDueStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("reconcile pass never started")
	}

	cancel()
	s.Wait()
	assert.Equal(t, int64(1), repo.listDueCalls.Load())
}

func TestScheduler_OverlappingTickSkipped(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{
		listDueStarted: make(chan struct{}, 2),
		release:        make(chan struct{}),
	}
	rec := reconciler.New(repo, testLogger())

	hook := &skipHook{skipped: make(chan struct{}, 1)}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	logger.AddHook(hook)

	// Two cadence loops share the reconciler; a tick on the second while
	// the first is mid-pass must be dropped, not queued
	opts := Options{FastInterval: time.Minute, SweepInterval: time.Hour}
	s := New(rec, &stubEventRepo{}, nil, clock, logger, opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	// First tick starts a pass that blocks inside the store
	clock.tick()
	select {
	case <-repo.listDueStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never started")
	}

	// Second tick reaches the other loop while the pass is in flight
	clock.tick()
	select {
	case <-hook.skipped:
	case <-time.After(2 * time.Second):
		t.Fatal("overlapping tick was not dropped")
	}

	// Unblock the first pass, then stop
	close(repo.release)
	cancel()
	s.Wait()

	assert.Equal(t, int64(1), repo.listDueCalls.Load(), "overlapping tick must be skipped, not queued")
}

func TestScheduler_HeldLeaseSkipsPass(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{}
	rec := reconciler.New(repo, testLogger())

	// Another process holds the lease; redislock reports that through a
	// possibly wrapped sentinel
	locker := &stubLocker{
		err:      fmt.Errorf("reconcile lease: %w", redislock.ErrNotObtained),
		obtained: make(chan struct{}, 1),
	}

	opts := Options{FastInterval: time.Minute}
	s := New(rec, &stubEventRepo{}, locker, clock, testLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	clock.tick()
	select {
	case <-locker.obtained:
	case <-time.After(2 * time.Second):
		t.Fatal("lease was never attempted")
	}

	cancel()
	s.Wait()
	assert.Equal(t, int64(0), repo.listDueCalls.Load(), "a held lease must skip the pass entirely")
}

func TestScheduler_LockBackendFailureDegradesToLocalGuard(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{listDueStarted: make(chan struct{}, 1)}
	rec := reconciler.New(repo, testLogger())

	locker := &stubLocker{
		err:      errors.New("redis: connection refused"),
		obtained: make(chan struct{}, 1),
	}

	opts := Options{FastInterval: time.Minute}
	s := New(rec, &stubEventRepo{}, locker, clock, testLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	clock.tick()
	select {
	case <-locker.obtained:
	case <-time.After(2 * time.Second):
		t.Fatal("lease was never attempted")
	}
	select {
	case <-repo.listDueStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not proceed on lock backend failure")
	}

	cancel()
	s.Wait()
	assert.Equal(t, int64(1), repo.listDueCalls.Load())
}

func TestScheduler_MaintenancePrunesWithRetention(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{}
	rec := reconciler.New(repo, testLogger())
	events := &stubEventRepo{pruneCutoffs: make(chan time.Time, 1)}

	retention := 30 * 24 * time.Hour
	opts := Options{MaintenanceInterval: time.Hour, NoticeRetention: retention}
	s := New(rec, events, nil, clock, testLogger(), opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	clock.tick()
	select {
	case cutoff := <-events.pruneCutoffs:
		assert.Equal(t, clock.now.Add(-retention), cutoff)
	case <-time.After(2 * time.Second):
		t.Fatal("maintenance never ran")
	}

	cancel()
	s.Wait()
	// The reconciler is untouched by the maintenance loop
	assert.Equal(t, int64(0), repo.listDueCalls.Load())
}

func TestScheduler_ZeroIntervalDisablesLoop(t *testing.T) {
	clock := newFakeClock()
	repo := &stubCampaignRepo{}
	rec := reconciler.New(repo, testLogger())

	s := New(rec, &stubEventRepo{}, nil, clock, testLogger(), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	// No loops were launched, so Wait returns immediately
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no loops running")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.Equal(t, 5*time.Minute, opts.FastInterval)
	require.Equal(t, time.Hour, opts.SweepInterval)
	require.Equal(t, 24*time.Hour, opts.MaintenanceInterval)
	require.Equal(t, 180*24*time.Hour, opts.NoticeRetention)
}
