package domain

import "time"

// Status represents a campaign's lifecycle state
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRejected  Status = "REJECTED"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusFunded    Status = "FUNDED"
	StatusExpired   Status = "EXPIRED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// transitions is the closed edge table of the lifecycle state machine.
// Any status write outside these edges is rejected at the repository
// boundary, so an illegal transition can never be persisted.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusActive},
	StatusActive:   {StatusFunded, StatusFailed, StatusExpired},
	StatusFunded:   {StatusCompleted},
	StatusExpired:  {StatusCompleted},
	// REJECTED, COMPLETED, FAILED are terminal
}

// ValidStatus reports whether s is a member of the status enum
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusRejected, StatusApproved, StatusActive,
		StatusFunded, StatusExpired, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions, donations or
// withdrawals are possible from s
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the edge from -> to exists in the
// lifecycle state machine
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActiveFlag returns the IsActive value a campaign must carry in status s.
// Donations check this flag rather than status alone, so it must flip to
// false the moment a campaign leaves APPROVED/ACTIVE.
func ActiveFlag(s Status) bool {
	return s == StatusApproved || s == StatusActive
}

// NextTransition evaluates the reconciliation guards for c at the given
// time and returns the transition that applies, if any.
//
// Guard order: funding-goal guards are evaluated before deadline guards,
// so a campaign that both reached its goal and passed its deadline in the
// same reconciliation window is classified FUNDED, never FAILED.
func NextTransition(c *Campaign, now time.Time) (Status, EventKind, bool) {
	switch c.Status {
	case StatusApproved:
		// Activated on the first reconciliation pass after approval
		return StatusActive, EventActivated, true

	case StatusActive:
		if c.GoalReached() {
			return StatusFunded, EventFunded, true
		}
		if c.DeadlinePassed(now) {
			return StatusFailed, EventFailed, true
		}

	case StatusFunded, StatusExpired:
		// Completion processing runs on the pass that observes the
		// funded/expired state; EXPIRED is a funded campaign whose
		// deadline passed before completion ran and is settled the
		// same way.
		return StatusCompleted, EventCompleted, true
	}

	return "", "", false
}
