package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/accounting"
)

var withdrawalsCommitted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "fundflow_withdrawals_committed_total",
	Help: "Withdrawals successfully committed to the ledger",
})

// WithdrawInput represents the input for a creator withdrawal
type WithdrawInput struct {
	CampaignID  uuid.UUID
	RequesterID uuid.UUID
	Amount      decimal.Decimal
	Destination string
}

// Service handles creator withdrawal operations
type Service struct {
	CampaignRepo domain.CampaignRepository
	Logger       *logrus.Logger
}

// NewService creates a new payout Service instance
func NewService(campaignRepo domain.CampaignRepository, logger *logrus.Logger) *Service {
	return &Service{
		CampaignRepo: campaignRepo,
		Logger:       logger,
	}
}

// Withdraw moves part of a campaign's withdrawable balance to the
// creator's destination account.
// Logic:
//  1. Fetch the campaign; only the creator may withdraw, and terminal
//     campaigns hold no withdrawable funds for new requests
//  2. Reject amounts above the currently withdrawable balance — this is
//     the caller-facing validation path
//  3. Commit through ApplyWithdrawal, which re-checks the balance
//     atomically at commit time; if a concurrent withdrawal drained the
//     balance in between, the commit fails as a conflict with no partial
//     effect, closing the double-withdrawal race
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (*domain.Campaign, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.Validationf("withdrawal amount must be positive")
	}
	if input.Destination == "" {
		return nil, domain.Validationf("withdrawal must name a destination account")
	}

	campaign, err := s.CampaignRepo.GetByID(ctx, input.CampaignID)
	if err != nil {
		return nil, err
	}

	if campaign.CreatorID != input.RequesterID {
		return nil, domain.ErrNotOwner
	}

	if campaign.Status.Terminal() {
		return nil, domain.Validationf("campaign is closed to withdrawals")
	}
	if campaign.Status == domain.StatusPending {
		return nil, domain.Validationf("campaign has not collected any funds")
	}

	withdrawable := accounting.Withdrawable(campaign)
	if input.Amount.GreaterThan(withdrawable) {
		return nil, domain.Validationf("withdrawal amount %s exceeds withdrawable balance %s",
			input.Amount, withdrawable)
	}

	withdrawal := &domain.Withdrawal{
		ID:          uuid.New(),
		CampaignID:  input.CampaignID,
		Amount:      input.Amount,
		Destination: input.Destination,
		CreatedAt:   time.Now(),
	}
	if err := withdrawal.Validate(); err != nil {
		return nil, domain.Validationf("%s", err.Error())
	}

	snapshot, err := s.CampaignRepo.ApplyWithdrawal(ctx, withdrawal)
	if err != nil {
		return nil, err
	}
	withdrawalsCommitted.Inc()

	s.Logger.WithFields(logrus.Fields{
		"campaign_id": snapshot.ID,
		"amount":      input.Amount.String(),
		"withdrawn":   snapshot.TotalWithdrawn.String(),
	}).Info("withdrawal committed")

	return snapshot, nil
}
