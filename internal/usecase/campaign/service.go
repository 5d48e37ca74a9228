package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fundflow/fundflow-backend/internal/domain"
	"github.com/fundflow/fundflow-backend/internal/usecase/accounting"
)

// CreateInput represents the input for submitting a new campaign
type CreateInput struct {
	CreatorID     uuid.UUID
	Title         string
	Description   string
	PhotoPath     string
	DocumentPath  string
	AmountNeeded  decimal.Decimal
	HasTimeLimit  bool
	TimeLimitType domain.TimeLimitType
	EndDate       *time.Time
}

// Projection is a read-only view of a campaign including the derived
// fields exposed to collaborators. Derived fields are computed on read
// and never persisted.
type Projection struct {
	Campaign           *domain.Campaign
	ProgressPercentage int
	WithdrawableAmount decimal.Decimal
	DaysRemaining      int
}

// Detail is a single-campaign projection with its append-only feeds
type Detail struct {
	Projection
	Donations   []*domain.Donation
	Withdrawals []*domain.Withdrawal
	Events      []*domain.LifecycleEvent
}

// ListResult carries one page of projections plus the total match count
type ListResult struct {
	Campaigns []Projection
	Total     int
}

// Service handles campaign submission, listing and admin moderation
type Service struct {
	CampaignRepo domain.CampaignRepository
	LedgerRepo   domain.LedgerRepository
	EventRepo    domain.EventRepository
	Logger       *logrus.Logger
}

// NewService creates a new campaign Service instance
func NewService(
	campaignRepo domain.CampaignRepository,
	ledgerRepo domain.LedgerRepository,
	eventRepo domain.EventRepository,
	logger *logrus.Logger,
) *Service {
	return &Service{
		CampaignRepo: campaignRepo,
		LedgerRepo:   ledgerRepo,
		EventRepo:    eventRepo,
		Logger:       logger,
	}
}

// Create submits a new campaign in PENDING with an empty ledger
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.CreatorID == uuid.Nil {
		return nil, domain.Validationf("campaign must have a creator")
	}

	now := time.Now()
	c := &domain.Campaign{
		ID:             uuid.New(),
		CreatorID:      input.CreatorID,
		Title:          input.Title,
		Description:    input.Description,
		PhotoPath:      input.PhotoPath,
		DocumentPath:   input.DocumentPath,
		AmountNeeded:   input.AmountNeeded,
		AmountReceived: decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		Status:         domain.StatusPending,
		HasTimeLimit:   input.HasTimeLimit,
		TimeLimitType:  input.TimeLimitType,
		EndDate:        input.EndDate,
		IsActive:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if c.HasTimeLimit && c.TimeLimitType == "" {
		c.TimeLimitType = domain.TimeLimitFixed
	}

	if err := c.Validate(); err != nil {
		return nil, domain.Validationf("%s", err.Error())
	}

	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"campaign_id": c.ID,
		"creator_id":  c.CreatorID,
		"goal":        c.AmountNeeded.String(),
	}).Info("campaign submitted")

	return c, nil
}

// Get returns a single campaign projection with its activity feeds
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	donations, err := s.LedgerRepo.DonationsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.LedgerRepo.WithdrawalsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.EventRepo.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	// A rollup that drifted from its ledger is a defect worth failing
	// the read over; serving the number would hide corrupted money state.
	if err := accounting.CheckConservation(c, donations, withdrawals); err != nil {
		s.Logger.WithField("campaign_id", c.ID).WithError(err).Error("ledger conservation violated")
		return nil, err
	}

	return &Detail{
		Projection:  project(c, time.Now()),
		Donations:   donations,
		Withdrawals: withdrawals,
		Events:      events,
	}, nil
}

// List returns one page of campaign projections matching the filter
func (s *Service) List(ctx context.Context, filter domain.CampaignFilter, sort domain.CampaignSort, page domain.Page) (*ListResult, error) {
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	if sort == "" {
		sort = domain.SortNewest
	}

	campaigns, err := s.CampaignRepo.List(ctx, filter, sort, page)
	if err != nil {
		return nil, err
	}
	total, err := s.CampaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &ListResult{Total: total, Campaigns: make([]Projection, 0, len(campaigns))}
	for _, c := range campaigns {
		result.Campaigns = append(result.Campaigns, project(c, now))
	}
	return result, nil
}

// AdminSetStatus is the manual moderation override. Only the
// PENDING -> APPROVED and PENDING -> REJECTED edges may be taken by
// hand; every other transition belongs to the reconciler and is
// rejected here. Approving a campaign with no time limit activates it
// in the same call, so flexible campaigns accept donations immediately.
func (s *Service) AdminSetStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status) (*domain.Campaign, error) {
	if newStatus != domain.StatusApproved && newStatus != domain.StatusRejected {
		return nil, domain.Validationf("manual override may only approve or reject a pending campaign")
	}

	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.StatusPending {
		return nil, domain.Validationf("campaign is %s; only pending campaigns can be moderated", c.Status)
	}

	kind := domain.EventApproved
	if newStatus == domain.StatusRejected {
		kind = domain.EventRejected
	}

	now := time.Now()
	updated, err := s.CampaignRepo.TransitionStatus(ctx, id, domain.StatusPending, newStatus,
		domain.NewLifecycleEvent(id, kind, now))
	if err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{
		"campaign_id": id,
		"status":      newStatus,
	}).Info("campaign moderated")

	// Flexible campaigns skip the activation wait; the same CAS commit
	// path the reconciler uses keeps the edge table authoritative.
	if newStatus == domain.StatusApproved && !updated.HasTimeLimit {
		activated, err := s.CampaignRepo.TransitionStatus(ctx, id,
			domain.StatusApproved, domain.StatusActive,
			domain.NewLifecycleEvent(id, domain.EventActivated, now))
		switch {
		case err == nil:
			updated = activated
		case errors.Is(err, domain.ErrConflict):
			// the reconciler beat us to it; the campaign is ACTIVE either way
		default:
			s.Logger.WithFields(logrus.Fields{
				"campaign_id": id,
			}).WithError(err).Warn("immediate activation failed; reconciler will settle")
		}
	}

	return updated, nil
}

// Delete removes a campaign that never went live. Only the creator may
// delete, and only while no funds have been collected.
func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if c.CreatorID != requesterID {
		return domain.ErrNotOwner
	}
	if c.Status != domain.StatusPending && c.Status != domain.StatusRejected {
		return domain.Validationf("only pending or rejected campaigns can be deleted")
	}
	if !c.AmountReceived.IsZero() {
		return domain.Validationf("campaigns holding funds cannot be deleted")
	}

	return s.CampaignRepo.Delete(ctx, id)
}

// ProjectNow computes the derived fields for a snapshot as of now
func ProjectNow(c *domain.Campaign) Projection {
	return project(c, time.Now())
}

// project computes the read-only derived fields for a snapshot
func project(c *domain.Campaign, now time.Time) Projection {
	return Projection{
		Campaign:           c,
		ProgressPercentage: accounting.ProgressPercentage(c),
		WithdrawableAmount: accounting.Withdrawable(c),
		DaysRemaining:      accounting.DaysRemaining(c, now),
	}
}
