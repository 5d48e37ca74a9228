package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundflow_lifecycle_transitions_total",
		Help: "Lifecycle transitions committed by the reconciler, by kind",
	}, []string{"kind"})

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fundflow_reconcile_duration_seconds",
		Help:    "Duration of reconciliation passes",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	})
)

// Summary reports what one reconciliation pass did
type Summary struct {
	Scanned      int
	Transitioned int
	Skipped      int // CAS misses: someone else moved the campaign first
	ByKind       map[domain.EventKind]int
}

// Reconciler advances campaign lifecycles based on current time and
// funding state. It is safe to re-run: every transition is gated on the
// campaign's persisted status, so a second pass over an already-settled
// campaign is a no-op and appends no duplicate notices.
type Reconciler struct {
	CampaignRepo domain.CampaignRepository
	Logger       *logrus.Logger
}

// New creates a new Reconciler instance
func New(campaignRepo domain.CampaignRepository, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		CampaignRepo: campaignRepo,
		Logger:       logger,
	}
}

// Reconcile scans due campaigns and commits every transition whose guard
// holds at the given time. A campaign may take several edges in one pass
// (ACTIVE -> FUNDED -> COMPLETED) so goal-and-deadline races settle
// deterministically in a single tick.
//
// Individual campaign failures do not abort the pass; they are joined
// into the returned error so the scheduler can report them.
func (r *Reconciler) Reconcile(ctx context.Context, now time.Time) (Summary, error) {
	timer := prometheus.NewTimer(reconcileDuration)
	defer timer.ObserveDuration()

	summary := Summary{ByKind: make(map[domain.EventKind]int)}

	due, err := r.CampaignRepo.ListDue(ctx, now)
	if err != nil {
		return summary, err
	}
	summary.Scanned = len(due)

	var errs []error
	for _, c := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		cur := c
		for {
			to, kind, ok := domain.NextTransition(cur, now)
			if !ok {
				break
			}

			event := domain.NewLifecycleEvent(cur.ID, kind, now)
			updated, err := r.CampaignRepo.TransitionStatus(ctx, cur.ID, cur.Status, to, event)
			if errors.Is(err, domain.ErrConflict) {
				// Concurrent writer (a donation flip, another pass, or a
				// moderator) already moved it. Nothing to redo.
				summary.Skipped++
				break
			}
			if err != nil {
				errs = append(errs, err)
				r.Logger.WithFields(logrus.Fields{
					"campaign_id": cur.ID,
					"from":        cur.Status,
					"to":          to,
				}).WithError(err).Error("transition commit failed")
				break
			}

			transitionsTotal.WithLabelValues(string(kind)).Inc()
			summary.Transitioned++
			summary.ByKind[kind]++

			r.Logger.WithFields(logrus.Fields{
				"campaign_id": updated.ID,
				"from":        cur.Status,
				"to":          updated.Status,
				"kind":        kind,
			}).Info("campaign transitioned")

			cur = updated
		}
	}

	return summary, errors.Join(errs...)
}
