package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// campaignColumns is the canonical select list scanned by scanCampaign
const campaignColumns = `
	id, creator_id, title, description, photo_path, document_path,
	amount_needed, amount_received, total_withdrawn,
	status, has_time_limit, time_limit_type, end_date, is_active,
	version, created_at, updated_at
`

// campaignRepository implements domain.CampaignRepository
type campaignRepository struct {
	db *DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *DB) domain.CampaignRepository {
	return &campaignRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCampaign reads one campaign row
func scanCampaign(row rowScanner) (*domain.Campaign, error) {
	var c domain.Campaign
	var needed, received, withdrawn string
	var timeLimitType sql.NullString
	var endDate sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.CreatorID,
		&c.Title,
		&c.Description,
		&c.PhotoPath,
		&c.DocumentPath,
		&needed,
		&received,
		&withdrawn,
		&c.Status,
		&c.HasTimeLimit,
		&timeLimitType,
		&endDate,
		&c.IsActive,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.AmountNeeded, err = decimal.NewFromString(needed); err != nil {
		return nil, fmt.Errorf("failed to parse amount_needed: %w", err)
	}
	if c.AmountReceived, err = decimal.NewFromString(received); err != nil {
		return nil, fmt.Errorf("failed to parse amount_received: %w", err)
	}
	if c.TotalWithdrawn, err = decimal.NewFromString(withdrawn); err != nil {
		return nil, fmt.Errorf("failed to parse total_withdrawn: %w", err)
	}
	if timeLimitType.Valid {
		c.TimeLimitType = domain.TimeLimitType(timeLimitType.String)
	}
	if endDate.Valid {
		end := endDate.Time
		c.EndDate = &end
	}

	return &c, nil
}

// wrapStoreErr classifies driver failures so callers can retry the
// transient ones. Context expiry means the bounded timeout fired.
func wrapStoreErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.Transientf("%s: %s", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create persists a new campaign
func (r *campaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, creator_id, title, description, photo_path, document_path,
			amount_needed, amount_received, total_withdrawn,
			status, has_time_limit, time_limit_type, end_date, is_active,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	var timeLimitType any
	if c.TimeLimitType != "" {
		timeLimitType = string(c.TimeLimitType)
	}
	var endDate any
	if c.EndDate != nil {
		endDate = *c.EndDate
	}

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.CreatorID,
		c.Title,
		c.Description,
		c.PhotoPath,
		c.DocumentPath,
		c.AmountNeeded.String(),
		c.AmountReceived.String(),
		c.TotalWithdrawn.String(),
		string(c.Status),
		c.HasTimeLimit,
		timeLimitType,
		endDate,
		c.IsActive,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return wrapStoreErr("failed to create campaign", err)
	}
	return nil
}

// GetByID retrieves a campaign by its ID
func (r *campaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, wrapStoreErr("failed to get campaign", err)
	}
	return c, nil
}

// List retrieves campaigns matching the filter, ordered and paged
func (r *campaignRepository) List(ctx context.Context, filter domain.CampaignFilter, sort domain.CampaignSort, page domain.Page) ([]*domain.Campaign, error) {
	where, args := buildFilter(filter)

	var order string
	switch sort {
	case domain.SortEndingSoon:
		order = "end_date ASC NULLS LAST"
	case domain.SortMostFunded:
		order = "amount_received DESC"
	default:
		order = "created_at DESC"
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`SELECT %s FROM campaigns %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		campaignColumns, where, order, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("failed to list campaigns", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrapStoreErr("failed to scan campaign", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the number of campaigns matching the filter
func (r *campaignRepository) Count(ctx context.Context, filter domain.CampaignFilter) (int, error) {
	where, args := buildFilter(filter)

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns `+where, args...).Scan(&count)
	if err != nil {
		return 0, wrapStoreErr("failed to count campaigns", err)
	}
	return count, nil
}

// buildFilter assembles the WHERE clause for List/Count
func buildFilter(filter domain.CampaignFilter) (string, []any) {
	where := ""
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		clause := fmt.Sprintf(cond, len(args))
		if where == "" {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
	}

	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}
	if filter.CreatorID != nil {
		add("creator_id = $%d", *filter.CreatorID)
	}
	return where, args
}

// Delete removes a campaign and its feeds. Usecases guard that this only
// runs pre-approval with an empty ledger.
func (r *campaignRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return wrapStoreErr("failed to delete campaign", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCampaignNotFound
	}
	return nil
}

// ApplyDonation appends the donation entry and increments AmountReceived
// in one transaction. The increment runs server-side against the current
// row with the eligibility predicate in the WHERE clause, so concurrent
// donations all land (no lost update) and a donation racing a FUNDED
// flip is rejected.
func (r *campaignRepository) ApplyDonation(ctx context.Context, d *domain.Donation) (*domain.Campaign, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("failed to begin donation transaction", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE campaigns
		SET amount_received = amount_received + $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND is_active
		  AND (status = 'ACTIVE' OR (status = 'APPROVED' AND NOT has_time_limit))
		RETURNING ` + campaignColumns

	c, err := scanCampaign(tx.QueryRowContext(ctx, query, d.Amount.String(), d.CreatedAt, d.CampaignID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyDonationMiss(ctx, d.CampaignID)
		}
		return nil, wrapStoreErr("failed to apply donation", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO donations (id, campaign_id, donor_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.CampaignID, d.DonorID, d.Amount.String(), d.CreatedAt)
	if err != nil {
		return nil, wrapStoreErr("failed to insert donation entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("failed to commit donation", err)
	}
	return c, nil
}

// classifyDonationMiss distinguishes a missing campaign from an
// ineligible one after the guarded update matched nothing
func (r *campaignRepository) classifyDonationMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return wrapStoreErr("failed to classify donation rejection", err)
	}
	if !exists {
		return domain.ErrCampaignNotFound
	}
	return domain.Validationf("campaign is not accepting donations")
}

// ApplyWithdrawal appends the withdrawal entry and increments
// TotalWithdrawn in one transaction. Both the state and balance
// predicates sit in the WHERE clause and are therefore evaluated against
// the committed row, not a stale read: a withdrawal racing a terminal
// flip cannot match, and of two concurrent withdrawals that together
// exceed the balance, at most one can.
func (r *campaignRepository) ApplyWithdrawal(ctx context.Context, w *domain.Withdrawal) (*domain.Campaign, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("failed to begin withdrawal transaction", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE campaigns
		SET total_withdrawn = total_withdrawn + $1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $3
		  AND status NOT IN ('PENDING', 'REJECTED', 'COMPLETED', 'FAILED')
		  AND amount_received - total_withdrawn >= $1
		RETURNING ` + campaignColumns

	c, err := scanCampaign(tx.QueryRowContext(ctx, query, w.Amount.String(), w.CreatedAt, w.CampaignID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.classifyWithdrawalMiss(ctx, w.CampaignID, w.Amount)
		}
		return nil, wrapStoreErr("failed to apply withdrawal", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, campaign_id, amount, destination, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, w.ID, w.CampaignID, w.Amount.String(), w.Destination, w.CreatedAt)
	if err != nil {
		return nil, wrapStoreErr("failed to insert withdrawal entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("failed to commit withdrawal", err)
	}
	return c, nil
}

// classifyWithdrawalMiss distinguishes a missing campaign, a closed one
// and a stale balance after the guarded update matched nothing
func (r *campaignRepository) classifyWithdrawalMiss(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrCampaignNotFound
	}
	if err != nil {
		return wrapStoreErr("failed to classify withdrawal rejection", err)
	}
	if s := domain.Status(status); s == domain.StatusPending || s.Terminal() {
		return domain.Validationf("campaign is closed to withdrawals")
	}
	return domain.Conflictf("withdrawable balance changed; withdrawal of %s no longer covered", amount)
}

// TransitionStatus commits the edge from -> to as a compare-and-set on
// the persisted status. The status write and the lifecycle event insert
// share one transaction: both land or neither does. A CAS miss returns
// ErrConflict with no effect, which keeps reconciliation idempotent.
func (r *campaignRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, event *domain.LifecycleEvent) (*domain.Campaign, error) {
	if !domain.CanTransition(from, to) {
		return nil, domain.Validationf("illegal transition %s -> %s", from, to)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStoreErr("failed to begin transition transaction", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE campaigns
		SET status = $1,
		    is_active = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND status = $5
		RETURNING ` + campaignColumns

	updatedAt := event.CreatedAt
	c, err := scanCampaign(tx.QueryRowContext(ctx, query,
		string(to), domain.ActiveFlag(to), updatedAt, id, string(from)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Conflictf("campaign is no longer %s", from)
		}
		return nil, wrapStoreErr("failed to transition campaign", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lifecycle_events (id, campaign_id, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.CampaignID, string(event.Kind), event.Message, event.CreatedAt)
	if err != nil {
		return nil, wrapStoreErr("failed to insert lifecycle event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStoreErr("failed to commit transition", err)
	}
	return c, nil
}

// ListDue returns campaigns whose lifecycle guards indicate a transition
// is due at the given time
func (r *campaignRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status IN ('APPROVED', 'FUNDED', 'EXPIRED')
		   OR (status = 'ACTIVE' AND (
		          amount_received >= amount_needed
		       OR (has_time_limit AND end_date IS NOT NULL AND end_date < $1)))
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, wrapStoreErr("failed to list due campaigns", err)
	}
	defer rows.Close()

	var out []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, wrapStoreErr("failed to scan due campaign", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
