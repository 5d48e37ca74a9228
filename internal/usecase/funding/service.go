package funding

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

var donationsCommitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fundflow_donations_committed_total",
	Help: "Donations successfully committed to the ledger",
})

// DonateInput represents the input for recording a donation.
// Payment capture is assumed to have already succeeded externally; this
// service only records the result in the ledger.
type DonateInput struct {
	CampaignID uuid.UUID
	DonorID    uuid.UUID
	Amount     decimal.Decimal
}

// Service handles donation recording operations
type Service struct {
	CampaignRepo domain.CampaignRepository
	Logger       *logrus.Logger
}

// NewService creates a new funding Service instance
func NewService(campaignRepo domain.CampaignRepository, logger *logrus.Logger) *Service {
	return &Service{
		CampaignRepo: campaignRepo,
		Logger:       logger,
	}
}

// Donate records a donation against a campaign.
// Logic:
//  1. Validate amount and donor
//  2. Fetch the campaign; reject creator self-donations and campaigns
//     that are not donation-eligible
//  3. Commit through ApplyDonation, which re-checks eligibility and
//     increments AmountReceived atomically — two simultaneous donations
//     on the same campaign are both reflected, never lost
//  4. If the committed snapshot crossed the goal, opportunistically flip
//     the campaign to FUNDED so further donations stop immediately; the
//     reconciler settles it either way
func (s *Service) Donate(ctx context.Context, input DonateInput) (*domain.Campaign, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Validationf("donation amount must be positive")
	}
	if input.DonorID == uuid.Nil {
		return nil, domain.Validationf("donation must carry a donor id")
	}

	campaign, err := s.CampaignRepo.GetByID(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if campaign.CreatorID == input.DonorID {
		return nil, domain.Validationf("creators cannot donate to their own campaign")
	}

	// Pre-check for a clean rejection reason; the commit below re-checks
	// the same predicate atomically against the persisted row.
	if !campaign.DonationEligible() {
		return nil, domain.Validationf("campaign is not accepting donations")
	}

	donation := &domain.Donation{
		ID:         uuid.New(),
		CampaignID: input.CampaignID,
		DonorID:    input.DonorID,
		Amount:     input.Amount,
		CreatedAt:  time.Now(),
	}
	if err := donation.Validate(); err != nil {
		return nil, domain.Validationf("%s", err.Error())
	}

	snapshot, err := s.CampaignRepo.ApplyDonation(ctx, donation)
	if err != nil {
		return nil, err
	}
	donationsCommitted.Inc()

	s.Logger.WithFields(logrus.Fields{
		"campaign_id": snapshot.ID,
		"donor_id":    input.DonorID,
		"amount":      input.Amount.String(),
		"received":    snapshot.AmountReceived.String(),
	}).Info("donation committed")

	// Opportunistic funded flip. Losing this race to the reconciler (or
	// to another donation's flip) is benign, so a conflict is swallowed.
	if snapshot.Status == domain.StatusActive && snapshot.GoalReached() {
		event := domain.NewLifecycleEvent(snapshot.ID, domain.EventFunded, donation.CreatedAt)
		flipped, err := s.CampaignRepo.TransitionStatus(ctx, snapshot.ID,
			domain.StatusActive, domain.StatusFunded, event)
		switch {
		case err == nil:
			snapshot = flipped
		case errors.Is(err, domain.ErrConflict):
			// already moved by someone else
		default:
			s.Logger.WithFields(logrus.Fields{
				"campaign_id": snapshot.ID,
			}).WithError(err).Warn("funded flip failed; reconciler will settle")
		}
	}

	return snapshot, nil
}
