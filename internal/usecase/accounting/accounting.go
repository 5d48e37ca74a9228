package accounting

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// Pure derivation functions over campaign ledger state. Derived values
// are computed on read and never persisted.

var hundred = decimal.NewFromInt(100)

// Withdrawable returns the creator's currently accessible balance:
// AmountReceived - TotalWithdrawn, clamped at zero.
//
// The clamp should never fire: the repositories re-check the balance at
// commit time. If it does fire, the stored rollups are corrupt and the
// caller should raise an invariant violation rather than show the value.
func Withdrawable(c *domain.Campaign) decimal.Decimal {
	w := c.AmountReceived.Sub(c.TotalWithdrawn)
	if w.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	return w
}

// ProgressPercentage returns min(100, round(100 * received / needed)).
// The cap is display-only; the raw received amount is never capped and
// overfunding stays visible through the campaign snapshot itself.
func ProgressPercentage(c *domain.Campaign) int {
	if c.AmountNeeded.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	pct := c.AmountReceived.Mul(hundred).Div(c.AmountNeeded).Round(0)
	if pct.GreaterThan(hundred) {
		return 100
	}
	return int(pct.IntPart())
}

// DaysRemaining returns the whole days until the campaign's end date,
// rounded up, floored at zero. Campaigns without a time limit report 0.
func DaysRemaining(c *domain.Campaign, now time.Time) int {
	if !c.HasTimeLimit || c.EndDate == nil {
		return 0
	}
	remaining := c.EndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// CheckConservation audits a campaign snapshot against its ledgers:
// AmountReceived must equal the sum of donation entries, TotalWithdrawn
// the sum of withdrawal entries, and received must cover withdrawn.
// A failure is a correctness defect, not a user error.
func CheckConservation(c *domain.Campaign, donations []*domain.Donation, withdrawals []*domain.Withdrawal) error {
	donated := decimal.Zero
	for _, d := range donations {
		donated = donated.Add(d.Amount)
	}
	if !donated.Equal(c.AmountReceived) {
		return domain.Invariantf("campaign %s: amount received %s does not match donation ledger sum %s",
			c.ID, c.AmountReceived, donated)
	}

	withdrawn := decimal.Zero
	for _, w := range withdrawals {
		withdrawn = withdrawn.Add(w.Amount)
	}
	if !withdrawn.Equal(c.TotalWithdrawn) {
		return domain.Invariantf("campaign %s: total withdrawn %s does not match withdrawal ledger sum %s",
			c.ID, c.TotalWithdrawn, withdrawn)
	}

	if c.AmountReceived.LessThan(c.TotalWithdrawn) {
		return domain.Invariantf("campaign %s: withdrawn %s exceeds received %s",
			c.ID, c.TotalWithdrawn, c.AmountReceived)
	}

	return nil
}
