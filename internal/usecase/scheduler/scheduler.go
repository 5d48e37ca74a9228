package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bsm/redislock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/reconciler"
)

const (
	reconcileLockKey = "fundflow:reconcile"

	// passTimeout bounds a single reconcile or maintenance run. It
	// matches the lease TTL so a hung pass cannot outlive its lock.
	passTimeout = time.Minute
)

var ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fundflow_scheduler_ticks_skipped_total",
	Help: "Scheduler ticks skipped because a reconciliation pass was already in flight",
})

// Clock abstracts time so tests can drive the scheduler deterministically
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Locker obtains the cross-process reconcile lease. *redislock.Client
// satisfies it.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns a Clock backed by the wall clock
func RealClock() Clock { return realClock{} }

// Options configures the scheduler cadences and retention window
type Options struct {
	// FastInterval drives expiry/funding detection (sub-hour)
	FastInterval time.Duration
	// SweepInterval drives the coarser general status sweep
	SweepInterval time.Duration
	// MaintenanceInterval drives daily housekeeping
	MaintenanceInterval time.Duration
	// NoticeRetention bounds how long pruned system notices are kept
	NoticeRetention time.Duration
}

// DefaultOptions returns the production cadences
func DefaultOptions() Options {
	return Options{
		FastInterval:        5 * time.Minute,
		SweepInterval:       time.Hour,
		MaintenanceInterval: 24 * time.Hour,
		NoticeRetention:     180 * 24 * time.Hour,
	}
}

// Scheduler triggers the reconciler on fixed cadences and runs periodic
// maintenance. It guarantees at most one reconciliation pass in flight:
// a tick that fires while the previous pass is still running is skipped,
// never queued. When a redislock client is configured the same guarantee
// extends across processes; without one the local flag alone applies.
type Scheduler struct {
	Reconciler *reconciler.Reconciler
	EventRepo  domain.EventRepository
	Locker     Locker // optional; nil when Redis is not configured
	Clock      Clock
	Logger     *logrus.Logger
	Opts       Options

	inFlight atomic.Bool
	errs     chan error
	wg       sync.WaitGroup
}

// New creates a new Scheduler instance
func New(rec *reconciler.Reconciler, eventRepo domain.EventRepository, locker Locker, clock Clock, logger *logrus.Logger, opts Options) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		Reconciler: rec,
		EventRepo:  eventRepo,
		Locker:     locker,
		Clock:      clock,
		Logger:     logger,
		Opts:       opts,
		errs:       make(chan error, 64),
	}
}

// Errs exposes non-fatal pass errors (transient store failures, notice
// delivery failures) for the host to log or alert on
func (s *Scheduler) Errs() <-chan error {
	return s.errs
}

// Start launches the three cadence loops. They stop when ctx is
// cancelled; Wait blocks until all loops have drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.runLoop(ctx, "fast-tick", s.Opts.FastInterval, s.reconcileOnce)
	s.runLoop(ctx, "status-sweep", s.Opts.SweepInterval, s.reconcileOnce)
	s.runLoop(ctx, "maintenance", s.Opts.MaintenanceInterval, s.maintainOnce)
}

// Wait blocks until all cadence loops have exited
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, name string, interval time.Duration, fn func(ctx context.Context) error) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.Clock.After(interval):
			}
			if err := fn(ctx); err != nil {
				s.report(err)
				s.Logger.WithFields(logrus.Fields{
					"loop": name,
				}).WithError(err).Warn("scheduled run reported errors")
			}
		}
	}()
}

// reconcileOnce runs a single reconciliation pass under the in-flight
// guard. Overlapping ticks are dropped rather than queued so a slow pass
// can never compound into a backlog of racing passes.
func (s *Scheduler) reconcileOnce(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		ticksSkipped.Inc()
		s.Logger.Debug("reconciliation already in flight; tick skipped")
		return nil
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	if s.Locker != nil {
		lock, err := s.Locker.Obtain(ctx, reconcileLockKey, time.Minute, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			// Another process holds the lease
			ticksSkipped.Inc()
			return nil
		}
		if err != nil {
			// Lock backend trouble degrades to the local flag only
			s.Logger.WithError(err).Warn("could not reach reconcile lock backend; proceeding with local guard")
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	now := s.Clock.Now()
	summary, err := s.Reconciler.Reconcile(ctx, now)

	s.Logger.WithFields(logrus.Fields{
		"scanned":      summary.Scanned,
		"transitioned": summary.Transitioned,
		"skipped":      summary.Skipped,
	}).Info("reconciliation pass finished")

	return err
}

// maintainOnce prunes system notices older than the retention window
func (s *Scheduler) maintainOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	cutoff := s.Clock.Now().Add(-s.Opts.NoticeRetention)
	pruned, err := s.EventRepo.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if pruned > 0 {
		s.Logger.WithFields(logrus.Fields{
			"pruned": pruned,
			"cutoff": cutoff,
		}).Info("pruned old lifecycle notices")
	}
	return nil
}

// report delivers an error to the host without ever blocking a loop;
// if nobody is draining the channel the error is only logged
func (s *Scheduler) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
