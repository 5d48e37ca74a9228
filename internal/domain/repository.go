package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CampaignSort selects the ordering of campaign listings
type CampaignSort string

const (
	SortNewest     CampaignSort = "NEWEST"
	SortEndingSoon CampaignSort = "ENDING_SOON"
	SortMostFunded CampaignSort = "MOST_FUNDED"
)

// CampaignFilter narrows campaign listings. Nil fields match everything.
type CampaignFilter struct {
	Status    *Status
	CreatorID *uuid.UUID
}

// Page bounds a listing query
type Page struct {
	Limit  int
	Offset int
}

// CampaignRepository defines the interface for campaign persistence.
//
// ApplyDonation, ApplyWithdrawal and TransitionStatus are the three
// atomic mutation points of the engine: each one re-validates its
// precondition at commit time against the persisted row, so two
// concurrent callers can never both pass a stale check. Implementations
// must make each of them a single unit (all effects or none).
type CampaignRepository interface {
	// Create persists a new campaign
	Create(ctx context.Context, c *Campaign) error

	// GetByID retrieves a campaign by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)

	// List retrieves campaigns matching the filter, ordered and paged
	List(ctx context.Context, filter CampaignFilter, sort CampaignSort, page Page) ([]*Campaign, error)

	// Count returns the number of campaigns matching the filter
	Count(ctx context.Context, filter CampaignFilter) (int, error)

	// Delete removes a campaign. Usecases only call this pre-approval,
	// when no funds have been collected.
	Delete(ctx context.Context, id uuid.UUID) error

	// ApplyDonation atomically appends the donation entry and increases
	// the campaign's AmountReceived, re-checking donation eligibility at
	// commit time. Returns the updated snapshot.
	ApplyDonation(ctx context.Context, d *Donation) (*Campaign, error)

	// ApplyWithdrawal atomically appends the withdrawal entry and
	// increases TotalWithdrawn, re-checking the withdrawable balance at
	// commit time. A stale balance surfaces as ErrConflict.
	ApplyWithdrawal(ctx context.Context, w *Withdrawal) (*Campaign, error)

	// TransitionStatus commits the edge from -> to as a compare-and-set
	// on the persisted status, flips IsActive accordingly and appends
	// the lifecycle event in the same unit. A CAS miss (the campaign is
	// no longer in `from`) returns ErrConflict and has no effect, which
	// is what makes reconciliation idempotent.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, event *LifecycleEvent) (*Campaign, error)

	// ListDue returns campaigns in APPROVED, ACTIVE, FUNDED or EXPIRED
	// whose guards indicate a transition is due at the given time.
	ListDue(ctx context.Context, now time.Time) ([]*Campaign, error)
}

// LedgerRepository defines read access to the append-only money ledgers
type LedgerRepository interface {
	// DonationsByCampaign returns a campaign's donation entries, newest first
	DonationsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*Donation, error)

	// WithdrawalsByCampaign returns a campaign's withdrawal entries, newest first
	WithdrawalsByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*Withdrawal, error)
}

// EventRepository defines the side-effect sink for lifecycle notices
type EventRepository interface {
	// Append records a lifecycle event on a campaign's activity feed
	Append(ctx context.Context, e *LifecycleEvent) error

	// ListByCampaign returns a campaign's lifecycle events, newest first
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*LifecycleEvent, error)

	// PruneOlderThan deletes system notices created before the cutoff
	// and returns how many were removed
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
