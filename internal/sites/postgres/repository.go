// Package postgres provides the PostgreSQL implementation of the sites repository.
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
	"github.com/rkotelnikov/sitewatch/internal/sites"
)

// Repository implements the sites.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const siteColumns = `id, external_id, name, primary_domain, status, last_deploy_at,
		deploy_suppression_minutes, secret_hash, created_at, updated_at`

// CreateSite inserts a new monitored site.
func (r *Repository) CreateSite(ctx context.Context, site *domain.MonitoredSite) error {
	query := `
		INSERT INTO sites (external_id, name, primary_domain, status, deploy_suppression_minutes, secret_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		site.ExternalID,
		site.Name,
		site.PrimaryDomain,
		site.Status,
		site.DeploySuppressionMinutes,
		site.SecretHash,
	).Scan(&site.ID, &site.CreatedAt, &site.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sites.ErrSiteExists
		}
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

// GetSiteByID retrieves a site by its ID.
func (r *Repository) GetSiteByID(ctx context.Context, id string) (*domain.MonitoredSite, error) {
	return r.getSite(ctx, "id", id)
}

// GetSiteByExternalID retrieves a site by its external identifier.
func (r *Repository) GetSiteByExternalID(ctx context.Context, externalID string) (*domain.MonitoredSite, error) {
	return r.getSite(ctx, "external_id", externalID)
}

func (r *Repository) getSite(ctx context.Context, column, value string) (*domain.MonitoredSite, error) {
	query := fmt.Sprintf("SELECT %s FROM sites WHERE %s = $1", siteColumns, column)

	var site domain.MonitoredSite
	err := r.db.QueryRow(ctx, query, value).Scan(
		&site.ID,
		&site.ExternalID,
		&site.Name,
		&site.PrimaryDomain,
		&site.Status,
		&site.LastDeployAt,
		&site.DeploySuppressionMinutes,
		&site.SecretHash,
		&site.CreatedAt,
		&site.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sites.ErrSiteNotFound
		}
		return nil, fmt.Errorf("get site by %s: %w", column, err)
	}
	return &site, nil
}

// ListSites retrieves sites matching the filter ordered by name.
func (r *Repository) ListSites(ctx context.Context, filter sites.SiteFilter) ([]domain.MonitoredSite, error) {
	query := "SELECT " + siteColumns + " FROM sites"
	args := []any{}

	if filter.Status != nil {
		query += " WHERE status = $1"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	list := make([]domain.MonitoredSite, 0)
	for rows.Next() {
		var site domain.MonitoredSite
		err := rows.Scan(
			&site.ID,
			&site.ExternalID,
			&site.Name,
			&site.PrimaryDomain,
			&site.Status,
			&site.LastDeployAt,
			&site.DeploySuppressionMinutes,
			&site.SecretHash,
			&site.CreatedAt,
			&site.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		list = append(list, site)
	}
	return list, rows.Err()
}

// UpdateSite updates the mutable site fields.
func (r *Repository) UpdateSite(ctx context.Context, site *domain.MonitoredSite) error {
	query := `
		UPDATE sites
		SET name = $2, primary_domain = $3, status = $4,
			deploy_suppression_minutes = $5, secret_hash = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		site.ID,
		site.Name,
		site.PrimaryDomain,
		site.Status,
		site.DeploySuppressionMinutes,
		site.SecretHash,
	).Scan(&site.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sites.ErrSiteNotFound
		}
		return fmt.Errorf("update site: %w", err)
	}
	return nil
}

// SetLastDeployAt records the moment of a deploy for a site.
func (r *Repository) SetLastDeployAt(ctx context.Context, siteID string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE sites SET last_deploy_at = $2, updated_at = NOW() WHERE id = $1",
		siteID, at,
	)
	if err != nil {
		return fmt.Errorf("set last deploy at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sites.ErrSiteNotFound
	}
	return nil
}

// CreateCheck inserts a new health check.
func (r *Repository) CreateCheck(ctx context.Context, check *domain.HealthCheck) error {
	query := `
		INSERT INTO health_checks (site_id, check_type, target, timeout_ms, expected_status, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		check.SiteID,
		check.Type,
		check.Target,
		check.Timeout.Milliseconds(),
		check.ExpectedStatus,
		check.Enabled,
	).Scan(&check.ID, &check.CreatedAt, &check.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create check: %w", err)
	}
	return nil
}

// GetCheckByID retrieves a health check by its ID.
func (r *Repository) GetCheckByID(ctx context.Context, id string) (*domain.HealthCheck, error) {
	query := `
		SELECT id, site_id, check_type, target, timeout_ms, expected_status, enabled, created_at, updated_at
		FROM health_checks
		WHERE id = $1
	`
	check, err := scanCheck(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sites.ErrCheckNotFound
		}
		return nil, fmt.Errorf("get check by id: %w", err)
	}
	return check, nil
}

// ListChecksBySite retrieves all checks for a site ordered by creation time.
func (r *Repository) ListChecksBySite(ctx context.Context, siteID string) ([]domain.HealthCheck, error) {
	query := `
		SELECT id, site_id, check_type, target, timeout_ms, expected_status, enabled, created_at, updated_at
		FROM health_checks
		WHERE site_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	checks := make([]domain.HealthCheck, 0)
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, *check)
	}
	return checks, rows.Err()
}

// SetCheckEnabled toggles a check.
func (r *Repository) SetCheckEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE health_checks SET enabled = $2, updated_at = NOW() WHERE id = $1",
		id, enabled,
	)
	if err != nil {
		return fmt.Errorf("set check enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sites.ErrCheckNotFound
	}
	return nil
}

// ListEnabledChecks retrieves every enabled check of every active site.
func (r *Repository) ListEnabledChecks(ctx context.Context) ([]sites.EnabledCheck, error) {
	query := `
		SELECT c.id, c.site_id, c.check_type, c.target, c.timeout_ms, c.expected_status,
			c.enabled, c.created_at, c.updated_at, s.name, s.primary_domain
		FROM health_checks c
		JOIN sites s ON s.id = c.site_id
		WHERE c.enabled AND s.status = 'active'
		ORDER BY s.name, c.created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enabled checks: %w", err)
	}
	defer rows.Close()

	checks := make([]sites.EnabledCheck, 0)
	for rows.Next() {
		var (
			ec        sites.EnabledCheck
			timeoutMS int64
		)
		err := rows.Scan(
			&ec.Check.ID,
			&ec.Check.SiteID,
			&ec.Check.Type,
			&ec.Check.Target,
			&timeoutMS,
			&ec.Check.ExpectedStatus,
			&ec.Check.Enabled,
			&ec.Check.CreatedAt,
			&ec.Check.UpdatedAt,
			&ec.SiteName,
			&ec.PrimaryDomain,
		)
		if err != nil {
			return nil, fmt.Errorf("scan enabled check: %w", err)
		}
		ec.Check.Timeout = time.Duration(timeoutMS) * time.Millisecond
		checks = append(checks, ec)
	}
	return checks, rows.Err()
}

func scanCheck(row pgx.Row) (*domain.HealthCheck, error) {
	var (
		check     domain.HealthCheck
		timeoutMS int64
	)
	err := row.Scan(
		&check.ID,
		&check.SiteID,
		&check.Type,
		&check.Target,
		&timeoutMS,
		&check.ExpectedStatus,
		&check.Enabled,
		&check.CreatedAt,
		&check.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	check.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return &check, nil
}
