package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// Fixed UUIDs so repeated dev runs and API examples stay stable
var (
	DemoCreatorID   = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	DemoPendingID   = uuid.MustParse("00000000-0000-0000-0000-0000000000d1")
	DemoActiveID    = uuid.MustParse("00000000-0000-0000-0000-0000000000d2")
	DemoOpenEndedID = uuid.MustParse("00000000-0000-0000-0000-0000000000d3")
)

// DemoSeeder populates a fresh store with sample campaigns covering the
// main lifecycle states. It only runs against empty dev backends; every
// campaign is looked up first so re-runs are no-ops.
type DemoSeeder struct {
	repo domain.CampaignRepository
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(repo domain.CampaignRepository) *DemoSeeder {
	return &DemoSeeder{
		repo: repo,
	}
}

// Seed ensures the demo campaigns exist, creating any that are missing
func (s *DemoSeeder) Seed(ctx context.Context) error {
	now := time.Now()
	end := now.Add(30 * 24 * time.Hour)

	campaigns := []*domain.Campaign{
		{
			ID:            DemoPendingID,
			CreatorID:     DemoCreatorID,
			Title:         "Neighbourhood Playground",
			Description:   "Swings, slides and a safe surface for the local park.",
			AmountNeeded:  decimal.NewFromInt(5000),
			Status:        domain.StatusPending,
			HasTimeLimit:  true,
			TimeLimitType: domain.TimeLimitFixed,
			EndDate:       &end,
		},
		{
			ID:            DemoActiveID,
			CreatorID:     DemoCreatorID,
			Title:         "Community Garden Beds",
			Description:   "Raised beds and tools for the shared garden.",
			AmountNeeded:  decimal.NewFromInt(1200),
			Status:        domain.StatusActive,
			HasTimeLimit:  true,
			TimeLimitType: domain.TimeLimitFlexible,
			EndDate:       &end,
			IsActive:      true,
		},
		{
			ID:           DemoOpenEndedID,
			CreatorID:    DemoCreatorID,
			Title:        "Animal Shelter Supplies",
			Description:  "Ongoing food and medicine fund, no deadline.",
			AmountNeeded: decimal.NewFromInt(3000),
			Status:       domain.StatusActive,
			IsActive:     true,
		},
	}

	for _, c := range campaigns {
		if _, err := s.repo.GetByID(ctx, c.ID); err == nil {
			continue
		}

		c.AmountReceived = decimal.Zero
		c.TotalWithdrawn = decimal.Zero
		c.CreatedAt = now
		c.UpdatedAt = now

		if err := c.Validate(); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, c); err != nil {
			return err
		}
	}

	return nil
}
