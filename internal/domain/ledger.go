package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Donation is an immutable ledger entry recording a captured donation.
// Once written it is never mutated or deleted; a campaign's
// AmountReceived must always equal the sum of its donation entries.
type Donation struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	DonorID    uuid.UUID
	Amount     decimal.Decimal
	CreatedAt  time.Time
}

// Validate ensures the donation adheres to domain rules
func (d *Donation) Validate() error {
	if d.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("donation amount must be positive")
	}
	if d.CampaignID == uuid.Nil {
		return errors.New("donation must reference a campaign")
	}
	if d.DonorID == uuid.Nil {
		return errors.New("donation must reference a donor")
	}
	return nil
}

// Withdrawal is an immutable ledger entry recording a payout to the
// campaign creator. The sum of a campaign's withdrawals must always
// equal its TotalWithdrawn.
type Withdrawal struct {
	ID          uuid.UUID
	CampaignID  uuid.UUID
	Amount      decimal.Decimal
	Destination string // opaque destination account descriptor
	CreatedAt   time.Time
}

// Validate ensures the withdrawal adheres to domain rules
func (w *Withdrawal) Validate() error {
	if w.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("withdrawal amount must be positive")
	}
	if w.CampaignID == uuid.Nil {
		return errors.New("withdrawal must reference a campaign")
	}
	if w.Destination == "" {
		return errors.New("withdrawal must have a destination account")
	}
	return nil
}
