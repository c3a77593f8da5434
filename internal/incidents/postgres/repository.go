// Package postgres provides the PostgreSQL implementation of the incidents
// repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rkotelnikov/sitewatch/internal/domain"
	"github.com/rkotelnikov/sitewatch/internal/incidents"
)

// Repository implements the incidents.Repository and
// incidents.ErrorLogRepository interfaces using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const incidentColumns = `id, site_id, severity, status, title, description,
		trigger_check_type, trigger_event_ids, opened_at, updated_at`

// CreateIncident inserts a new open incident. A collision with the partial
// unique index on (site_id, trigger_check_type) WHERE status='open' is
// returned as ErrOpenIncidentExists so the caller can merge instead.
func (r *Repository) CreateIncident(ctx context.Context, incident *domain.Incident) error {
	query := `
		INSERT INTO incidents (site_id, severity, status, title, description, trigger_check_type, trigger_event_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, opened_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		incident.SiteID,
		incident.Severity,
		incident.Status,
		incident.Title,
		incident.Description,
		incident.TriggerCheckType,
		incident.TriggerEventIDs,
	).Scan(&incident.ID, &incident.OpenedAt, &incident.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return incidents.ErrOpenIncidentExists
		}
		return fmt.Errorf("create incident: %w", err)
	}
	return nil
}

// GetIncidentByID retrieves an incident by its ID.
func (r *Repository) GetIncidentByID(ctx context.Context, id string) (*domain.Incident, error) {
	query := fmt.Sprintf("SELECT %s FROM incidents WHERE id = $1", incidentColumns)
	return r.scanIncident(r.db.QueryRow(ctx, query, id), "get incident by id")
}

// GetOpenIncident retrieves the single open incident for
// (site, trigger check type).
func (r *Repository) GetOpenIncident(ctx context.Context, siteID string, checkType domain.CheckType) (*domain.Incident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM incidents
		WHERE site_id = $1 AND trigger_check_type = $2 AND status = 'open'
	`, incidentColumns)
	return r.scanIncident(r.db.QueryRow(ctx, query, siteID, checkType), "get open incident")
}

// AppendTriggerEvent adds an event id to an incident's trigger list,
// refreshes the description and bumps updated_at.
func (r *Repository) AppendTriggerEvent(ctx context.Context, incidentID, eventID, description string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE incidents
		SET trigger_event_ids = array_append(trigger_event_ids, $2),
			description = $3,
			updated_at = NOW()
		WHERE id = $1
	`, incidentID, eventID, description)
	if err != nil {
		return fmt.Errorf("append trigger event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return incidents.ErrIncidentNotFound
	}
	return nil
}

// ListIncidentsBySite retrieves the most recent incidents for a site.
func (r *Repository) ListIncidentsBySite(ctx context.Context, siteID string, limit int) ([]domain.Incident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM incidents
		WHERE site_id = $1
		ORDER BY opened_at DESC
		LIMIT $2
	`, incidentColumns)

	rows, err := r.db.Query(ctx, query, siteID, limit)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Incident, 0)
	for rows.Next() {
		var incident domain.Incident
		err := rows.Scan(
			&incident.ID,
			&incident.SiteID,
			&incident.Severity,
			&incident.Status,
			&incident.Title,
			&incident.Description,
			&incident.TriggerCheckType,
			&incident.TriggerEventIDs,
			&incident.OpenedAt,
			&incident.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		list = append(list, incident)
	}
	return list, rows.Err()
}

// CreateErrorLog inserts a directly reported error. A caller-supplied
// timestamp overrides the insert time.
func (r *Repository) CreateErrorLog(ctx context.Context, entry *domain.ErrorLogEntry) error {
	var createdAt *time.Time
	if !entry.CreatedAt.IsZero() {
		createdAt = &entry.CreatedAt
	}

	query := `
		INSERT INTO error_logs (site_id, severity, error_type, message, path, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		entry.SiteID,
		entry.Severity,
		entry.ErrorType,
		entry.Message,
		entry.Path,
		entry.Metadata,
		createdAt,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("create error log: %w", err)
	}
	return nil
}

// LinkIncident marks an error log as processed and linked to an incident.
func (r *Repository) LinkIncident(ctx context.Context, errorLogID, incidentID string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE error_logs SET incident_id = $2, processed = TRUE WHERE id = $1",
		errorLogID, incidentID,
	)
	if err != nil {
		return fmt.Errorf("link error log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link error log: no row with id %s", errorLogID)
	}
	return nil
}

func (r *Repository) scanIncident(row pgx.Row, op string) (*domain.Incident, error) {
	var incident domain.Incident
	err := row.Scan(
		&incident.ID,
		&incident.SiteID,
		&incident.Severity,
		&incident.Status,
		&incident.Title,
		&incident.Description,
		&incident.TriggerCheckType,
		&incident.TriggerEventIDs,
		&incident.OpenedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, incidents.ErrIncidentNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &incident, nil
}
