package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TimeLimitType represents how a campaign's duration is bounded
type TimeLimitType string

const (
	TimeLimitFixed    TimeLimitType = "FIXED"
	TimeLimitFlexible TimeLimitType = "FLEXIBLE"
)

// Campaign represents a funding campaign entity in the domain layer.
// AmountReceived and TotalWithdrawn are rollups of the append-only
// Donation and Withdrawal ledgers; they are mutated only through the
// atomic repository operations, never assigned directly by callers.
type Campaign struct {
	ID           uuid.UUID
	CreatorID    uuid.UUID
	Title        string
	Description  string
	PhotoPath    string // opaque storage path, managed elsewhere
	DocumentPath string

	AmountNeeded   decimal.Decimal // goal, immutable once approved
	AmountReceived decimal.Decimal // sum of committed donations, monotonic
	TotalWithdrawn decimal.Decimal // sum of committed withdrawals, monotonic

	Status        Status
	HasTimeLimit  bool
	TimeLimitType TimeLimitType
	EndDate       *time.Time // required iff HasTimeLimit
	IsActive      bool       // true while the campaign may accept donations

	Version   int64 // bumped on every committed mutation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate ensures the campaign adheres to domain rules
// Returns an error if validation fails
func (c *Campaign) Validate() error {
	if c.Title == "" {
		return errors.New("campaign title cannot be empty")
	}

	if c.AmountNeeded.LessThanOrEqual(decimal.Zero) {
		return errors.New("campaign goal amount must be positive")
	}

	// Time-limited campaigns MUST carry an end date
	if c.HasTimeLimit {
		if c.EndDate == nil {
			return errors.New("time-limited campaign must have an end date")
		}
		if c.TimeLimitType != TimeLimitFixed && c.TimeLimitType != TimeLimitFlexible {
			return errors.New("time limit type must be FIXED or FLEXIBLE")
		}
	} else if c.EndDate != nil {
		return errors.New("campaign without a time limit cannot have an end date")
	}

	if c.AmountReceived.LessThan(decimal.Zero) || c.TotalWithdrawn.LessThan(decimal.Zero) {
		return errors.New("ledger rollups cannot be negative")
	}

	if c.AmountReceived.LessThan(c.TotalWithdrawn) {
		return errors.New("total withdrawn cannot exceed amount received")
	}

	return nil
}

// DonationEligible reports whether the campaign may accept a donation
// right now. The IsActive flag is checked in addition to Status because
// a campaign that just flipped to FUNDED must stop accepting donations
// immediately, before completion processing runs.
func (c *Campaign) DonationEligible() bool {
	if !c.IsActive {
		return false
	}
	if c.Status == StatusActive {
		return true
	}
	// An approved campaign with no time limit accepts donations even
	// before the first reconciliation pass activates it.
	return c.Status == StatusApproved && !c.HasTimeLimit
}

// WithdrawalEligible reports whether the campaign state still admits
// withdrawals. Pending campaigns hold no releasable funds and terminal
// campaigns are settled, so both reject.
func (c *Campaign) WithdrawalEligible() bool {
	return c.Status != StatusPending && !c.Status.Terminal()
}

// GoalReached reports whether committed donations meet or exceed the goal
func (c *Campaign) GoalReached() bool {
	return c.AmountReceived.GreaterThanOrEqual(c.AmountNeeded)
}

// DeadlinePassed reports whether the campaign's end date is behind now.
// Campaigns without a time limit never expire.
func (c *Campaign) DeadlinePassed(now time.Time) bool {
	return c.HasTimeLimit && c.EndDate != nil && now.After(*c.EndDate)
}
