package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// Store is an in-memory implementation of the campaign, ledger and event
// repositories. It mirrors the commit-time re-validation semantics of
// the postgres adapter under a single mutex, which makes it the
// reference implementation for the concurrency tests and a zero-setup
// backend for local development.
type Store struct {
	mu          sync.Mutex
	campaigns   map[uuid.UUID]*domain.Campaign
	donations   map[uuid.UUID][]*domain.Donation
	withdrawals map[uuid.UUID][]*domain.Withdrawal
	events      map[uuid.UUID][]*domain.LifecycleEvent
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		campaigns:   make(map[uuid.UUID]*domain.Campaign),
		donations:   make(map[uuid.UUID][]*domain.Donation),
		withdrawals: make(map[uuid.UUID][]*domain.Withdrawal),
		events:      make(map[uuid.UUID][]*domain.LifecycleEvent),
	}
}

// snapshot returns a copy so callers never share the stored struct
func snapshot(c *domain.Campaign) *domain.Campaign {
	cp := *c
	if c.EndDate != nil {
		end := *c.EndDate
		cp.EndDate = &end
	}
	return &cp
}

// Create persists a new campaign
func (s *Store) Create(_ context.Context, c *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.campaigns[c.ID]; exists {
		return domain.Conflictf("campaign %s already exists", c.ID)
	}
	s.campaigns[c.ID] = snapshot(c)
	return nil
}

// GetByID retrieves a campaign by its ID
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	return snapshot(c), nil
}

// List retrieves campaigns matching the filter, ordered and paged
func (s *Store) List(_ context.Context, filter domain.CampaignFilter, sortBy domain.CampaignSort, page domain.Page) ([]*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.match(filter)

	switch sortBy {
	case domain.SortEndingSoon:
		sort.Slice(matched, func(i, j int) bool {
			// Campaigns without an end date sort last
			if matched[i].EndDate == nil {
				return false
			}
			if matched[j].EndDate == nil {
				return true
			}
			return matched[i].EndDate.Before(*matched[j].EndDate)
		})
	case domain.SortMostFunded:
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].AmountReceived.GreaterThan(matched[j].AmountReceived)
		})
	default: // SortNewest
		sort.Slice(matched, func(i, j int) bool {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		})
	}

	if page.Offset >= len(matched) {
		return []*domain.Campaign{}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < len(matched) {
		matched = matched[:page.Limit]
	}

	out := make([]*domain.Campaign, 0, len(matched))
	for _, c := range matched {
		out = append(out, snapshot(c))
	}
	return out, nil
}

// Count returns the number of campaigns matching the filter
func (s *Store) Count(_ context.Context, filter domain.CampaignFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.match(filter)), nil
}

// match must be called with the mutex held
func (s *Store) match(filter domain.CampaignFilter) []*domain.Campaign {
	matched := make([]*domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CreatorID != nil && c.CreatorID != *filter.CreatorID {
			continue
		}
		matched = append(matched, c)
	}
	return matched
}

// Delete removes a campaign and its feeds
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.campaigns[id]; !ok {
		return domain.ErrCampaignNotFound
	}
	delete(s.campaigns, id)
	delete(s.donations, id)
	delete(s.withdrawals, id)
	delete(s.events, id)
	return nil
}

// ApplyDonation atomically appends the donation entry and increments
// AmountReceived. Eligibility is re-checked under the lock, so a
// donation racing a FUNDED flip is rejected, never silently stranded.
func (s *Store) ApplyDonation(_ context.Context, d *domain.Donation) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[d.CampaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if !c.DonationEligible() {
		return nil, domain.Validationf("campaign is not accepting donations")
	}

	entry := *d
	s.donations[c.ID] = append(s.donations[c.ID], &entry)
	c.AmountReceived = c.AmountReceived.Add(d.Amount)
	c.Version++
	c.UpdatedAt = d.CreatedAt

	return snapshot(c), nil
}

// ApplyWithdrawal atomically appends the withdrawal entry and increments
// TotalWithdrawn. Both the state and balance checks run under the lock
// against the current row: a withdrawal racing a terminal flip is
// rejected here, and of two concurrent requests that together exceed
// the balance, the second fails here.
func (s *Store) ApplyWithdrawal(_ context.Context, w *domain.Withdrawal) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[w.CampaignID]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	if !c.WithdrawalEligible() {
		return nil, domain.Validationf("campaign is closed to withdrawals")
	}

	withdrawable := c.AmountReceived.Sub(c.TotalWithdrawn)
	if w.Amount.GreaterThan(withdrawable) {
		return nil, domain.Conflictf("withdrawal amount %s exceeds withdrawable balance %s",
			w.Amount, withdrawable)
	}

	entry := *w
	s.withdrawals[c.ID] = append(s.withdrawals[c.ID], &entry)
	c.TotalWithdrawn = c.TotalWithdrawn.Add(w.Amount)
	c.Version++
	c.UpdatedAt = w.CreatedAt

	return snapshot(c), nil
}

// TransitionStatus commits the edge from -> to as a compare-and-set on
// the stored status and appends the lifecycle event in the same critical
// section — both happen or neither does.
func (s *Store) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.Status, event *domain.LifecycleEvent) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}

	if !domain.CanTransition(from, to) {
		return nil, domain.Validationf("illegal transition %s -> %s", from, to)
	}
	if c.Status != from {
		return nil, domain.Conflictf("campaign is %s, expected %s", c.Status, from)
	}

	c.Status = to
	c.IsActive = domain.ActiveFlag(to)
	c.Version++
	if event != nil {
		c.UpdatedAt = event.CreatedAt
		ev := *event
		s.events[id] = append(s.events[id], &ev)
	}

	return snapshot(c), nil
}

// ListDue returns campaigns whose lifecycle guards indicate a transition
// is due at the given time
func (s *Store) ListDue(_ context.Context, now time.Time) ([]*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*domain.Campaign, 0)
	for _, c := range s.campaigns {
		switch c.Status {
		case domain.StatusApproved, domain.StatusFunded, domain.StatusExpired:
			due = append(due, snapshot(c))
		case domain.StatusActive:
			if c.GoalReached() || c.DeadlinePassed(now) {
				due = append(due, snapshot(c))
			}
		}
	}

	// Deterministic order for tests and logs
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	return due, nil
}

// DonationsByCampaign returns a campaign's donation entries, newest first
func (s *Store) DonationsByCampaign(_ context.Context, campaignID uuid.UUID) ([]*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.donations[campaignID]
	out := make([]*domain.Donation, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := *entries[i]
		out = append(out, &entry)
	}
	return out, nil
}

// WithdrawalsByCampaign returns a campaign's withdrawal entries, newest first
func (s *Store) WithdrawalsByCampaign(_ context.Context, campaignID uuid.UUID) ([]*domain.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.withdrawals[campaignID]
	out := make([]*domain.Withdrawal, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := *entries[i]
		out = append(out, &entry)
	}
	return out, nil
}

// Append records a lifecycle event on a campaign's activity feed
func (s *Store) Append(_ context.Context, e *domain.LifecycleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := *e
	s.events[e.CampaignID] = append(s.events[e.CampaignID], &ev)
	return nil
}

// ListByCampaign returns a campaign's lifecycle events, newest first
func (s *Store) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]*domain.LifecycleEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.events[campaignID]
	out := make([]*domain.LifecycleEvent, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		ev := *entries[i]
		out = append(out, &ev)
	}
	return out, nil
}

// PruneOlderThan deletes system notices created before the cutoff
func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for id, events := range s.events {
		kept := events[:0]
		for _, e := range events {
			if e.CreatedAt.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, e)
		}
		s.events[id] = kept
	}
	return pruned, nil
}
