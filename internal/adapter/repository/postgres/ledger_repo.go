package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// DonationsByCampaign returns a campaign's donation entries, newest first
func (r *ledgerRepository) DonationsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.Donation, error) {
	query := `
		SELECT id, campaign_id, donor_id, amount, created_at
		FROM donations
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, wrapStoreErr("failed to list donations", err)
	}
	defer rows.Close()

	var out []*domain.Donation
	for rows.Next() {
		var d domain.Donation
		var amount string
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.DonorID, &amount, &d.CreatedAt); err != nil {
			return nil, wrapStoreErr("failed to scan donation", err)
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse donation amount: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// WithdrawalsByCampaign returns a campaign's withdrawal entries, newest first
func (r *ledgerRepository) WithdrawalsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.Withdrawal, error) {
	query := `
		SELECT id, campaign_id, amount, destination, created_at
		FROM withdrawals
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, wrapStoreErr("failed to list withdrawals", err)
	}
	defer rows.Close()

	var out []*domain.Withdrawal
	for rows.Next() {
		var w domain.Withdrawal
		var amount string
		if err := rows.Scan(&w.ID, &w.CampaignID, &amount, &w.Destination, &w.CreatedAt); err != nil {
			return nil, wrapStoreErr("failed to scan withdrawal", err)
		}
		if w.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse withdrawal amount: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}
