package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fundflow/fundflow-backend/internal/domain"
)

// eventRepository implements domain.EventRepository
type eventRepository struct {
	db *DB
}

// NewEventRepository creates a new lifecycle event repository
func NewEventRepository(db *DB) domain.EventRepository {
	return &eventRepository{db: db}
}

// Append records a lifecycle event on a campaign's activity feed
func (r *eventRepository) Append(ctx context.Context, e *domain.LifecycleEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lifecycle_events (id, campaign_id, kind, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.CampaignID, string(e.Kind), e.Message, e.CreatedAt)
	if err != nil {
		return wrapStoreErr("failed to append lifecycle event", err)
	}
	return nil
}

// ListByCampaign returns a campaign's lifecycle events, newest first
func (r *eventRepository) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.LifecycleEvent, error) {
	query := `
		SELECT id, campaign_id, kind, message, created_at
		FROM lifecycle_events
		WHERE campaign_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, wrapStoreErr("failed to list lifecycle events", err)
	}
	defer rows.Close()

	var out []*domain.LifecycleEvent
	for rows.Next() {
		var e domain.LifecycleEvent
		if err := rows.Scan(&e.ID, &e.CampaignID, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, wrapStoreErr("failed to scan lifecycle event", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes system notices created before the cutoff
func (r *eventRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lifecycle_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapStoreErr("failed to prune lifecycle events", err)
	}
	return res.RowsAffected()
}
