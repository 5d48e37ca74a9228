package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// OverviewResult represents the platform-wide funding overview
type OverviewResult struct {
	TotalCampaigns  int
	ActiveCampaigns int
	TotalRaised     decimal.Decimal
	TotalWithdrawn  decimal.Decimal
	ByStatus        map[domain.Status]int
}

// Service handles platform statistics operations
type Service struct {
	CampaignRepo domain.CampaignRepository
}

// NewService creates a new stats Service instance
func NewService(campaignRepo domain.CampaignRepository) *Service {
	return &Service{CampaignRepo: campaignRepo}
}

// statusSet is every member of the lifecycle enum, for the per-status
// breakdown
var statusSet = []domain.Status{
	domain.StatusPending, domain.StatusRejected, domain.StatusApproved,
	domain.StatusActive, domain.StatusFunded, domain.StatusExpired,
	domain.StatusCompleted, domain.StatusFailed,
}

// Overview aggregates counts and raised totals across all campaigns.
// Logic:
//   - Count campaigns per status through the filterable Count
//   - Page through all campaigns summing the ledger rollups
func (s *Service) Overview(ctx context.Context) (*OverviewResult, error) {
	result := &OverviewResult{
		TotalRaised:    decimal.Zero,
		TotalWithdrawn: decimal.Zero,
		ByStatus:       make(map[domain.Status]int),
	}

	for _, status := range statusSet {
		st := status
		count, err := s.CampaignRepo.Count(ctx, domain.CampaignFilter{Status: &st})
		if err != nil {
			return nil, fmt.Errorf("failed to count %s campaigns: %w", status, err)
		}
		if count > 0 {
			result.ByStatus[status] = count
		}
		result.TotalCampaigns += count
		if status == domain.StatusActive {
			result.ActiveCampaigns = count
		}
	}

	const pageSize = 200
	for offset := 0; ; offset += pageSize {
		page, err := s.CampaignRepo.List(ctx, domain.CampaignFilter{}, domain.SortNewest,
			domain.Page{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to page campaigns: %w", err)
		}
		for _, c := range page {
			result.TotalRaised = result.TotalRaised.Add(c.AmountReceived)
			result.TotalWithdrawn = result.TotalWithdrawn.Add(c.TotalWithdrawn)
		}
		if len(page) < pageSize {
			break
		}
	}

	return result, nil
}
