// Package postgres provides the PostgreSQL implementation of the monitor
// event repository.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rkotelnikov/sitewatch/internal/domain"
)

// Repository implements the monitor.EventRepository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateEvent appends a health event. Events are immutable once written.
func (r *Repository) CreateEvent(ctx context.Context, event *domain.HealthEvent) error {
	query := `
		INSERT INTO health_events (site_id, check_id, check_type, result, latency_ms, http_status, error_message, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		event.SiteID,
		event.CheckID,
		event.CheckType,
		event.Result,
		event.Latency.Milliseconds(),
		event.HTTPStatus,
		event.ErrorMessage,
		event.RawPayload,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("create health event: %w", err)
	}
	return nil
}

// ListRecentEvents returns the newest events for (site, check type), newest
// first. This is the history window the classifier counts failures over.
func (r *Repository) ListRecentEvents(ctx context.Context, siteID string, checkType domain.CheckType, limit int) ([]domain.HealthEvent, error) {
	query := `
		SELECT id, site_id, check_id, check_type, result, latency_ms, http_status, error_message, raw_payload, created_at
		FROM health_events
		WHERE site_id = $1 AND check_type = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, siteID, checkType, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.HealthEvent, 0, limit)
	for rows.Next() {
		var (
			event     domain.HealthEvent
			latencyMS int64
		)
		err := rows.Scan(
			&event.ID,
			&event.SiteID,
			&event.CheckID,
			&event.CheckType,
			&event.Result,
			&latencyMS,
			&event.HTTPStatus,
			&event.ErrorMessage,
			&event.RawPayload,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan health event: %w", err)
		}
		event.Latency = time.Duration(latencyMS) * time.Millisecond
		events = append(events, event)
	}
	return events, rows.Err()
}
