package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sitepulse/sitepulse/internal/models"
)

const queryTimeout = 5 * time.Second

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// =============================================================================
// USERS (owner identities)
// =============================================================================

func (r *PostgresRepository) GetOrCreateUserByEmail(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Upsert on the unique email so concurrent registrations converge
	// on a single owner row.
	query := `
		INSERT INTO users (id, google_id, name, email, avatar)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id, google_id, name, email, avatar, created_at
	`

	var out models.User
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.GoogleID, user.Name, user.Email, user.Avatar,
	).Scan(&out.ID, &out.GoogleID, &out.Name, &out.Email, &out.Avatar, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	return &out, nil
}

// =============================================================================
// APPS
// =============================================================================

func (r *PostgresRepository) CreateApp(ctx context.Context, app *models.App) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO apps (id, name, owner_email, api_key_hash, revoked, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		app.ID, app.Name, app.OwnerEmail, app.APIKeyHash, app.Revoked, app.UserID,
	)
	if err != nil {
		// Unique constraint violation (23505): translate by constraint.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "api_key_hash") {
				return ErrDuplicateKeyHash
			}
			return ErrDuplicateOwner
		}
		return fmt.Errorf("failed to create app: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetAppByID(ctx context.Context, id string) (*models.App, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, name, owner_email, api_key_hash, revoked, revoked_at, created_at, user_id
		FROM apps
		WHERE id = $1
	`

	var app models.App
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&app.ID, &app.Name, &app.OwnerEmail, &app.APIKeyHash,
		&app.Revoked, &app.RevokedAt, &app.CreatedAt, &app.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to get app: %w", err)
	}

	return &app, nil
}

func (r *PostgresRepository) ListApps(ctx context.Context) ([]*models.App, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, name, owner_email, api_key_hash, revoked, revoked_at, created_at, user_id
		FROM apps
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		var app models.App
		if err := rows.Scan(
			&app.ID, &app.Name, &app.OwnerEmail, &app.APIKeyHash,
			&app.Revoked, &app.RevokedAt, &app.CreatedAt, &app.UserID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan app: %w", err)
		}
		apps = append(apps, &app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}

	return apps, nil
}

func (r *PostgresRepository) RevokeApp(ctx context.Context, id string, revokedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Conditional update: only one concurrent revoke can flip the flag.
	query := `
		UPDATE apps
		SET revoked = TRUE, revoked_at = $2
		WHERE id = $1 AND revoked = FALSE
	`

	tag, err := r.pool.Exec(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("failed to revoke app: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the app does not exist or it is already revoked.
	var revoked bool
	err = r.pool.QueryRow(ctx, `SELECT revoked FROM apps WHERE id = $1`, id).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAppNotFound
		}
		return fmt.Errorf("failed to revoke app: %w", err)
	}
	return ErrAlreadyRevoked
}

// =============================================================================
// EVENTS
// =============================================================================

func (r *PostgresRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO events (app_id, event_type, url, referrer, device, ip_address, timestamp, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		event.AppID, event.EventType, event.URL, event.Referrer,
		event.Device, event.IPAddress, event.Timestamp, event.Metadata,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// filterClause renders the WHERE conditions for an EventFilter.
// Placeholders start at $1.
func filterClause(f models.EventFilter) (string, []interface{}) {
	conds := []string{"event_type = $1"}
	args := []interface{}{f.EventType}

	if f.AppID != "" {
		args = append(args, f.AppID)
		conds = append(conds, fmt.Sprintf("app_id = $%d", len(args)))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	return strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) CountEvents(ctx context.Context, filter models.EventFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where, args := filterClause(filter)
	query := `SELECT COUNT(*) FROM events WHERE ` + where

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CountUniqueUsers(ctx context.Context, filter models.EventFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Events without a userId are excluded from the distinct count,
	// not lumped into an extra bucket.
	where, args := filterClause(filter)
	query := `
		SELECT COUNT(DISTINCT metadata->>'userId')
		FROM events
		WHERE ` + where + ` AND COALESCE(metadata->>'userId', '') <> ''`

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unique users: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) DeviceBreakdown(ctx context.Context, filter models.EventFilter) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where, args := filterClause(filter)
	query := `
		SELECT COALESCE(NULLIF(device, ''), 'unknown') AS device, COUNT(*)
		FROM events
		WHERE ` + where + `
		GROUP BY 1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to compute device breakdown: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]int64)
	for rows.Next() {
		var device string
		var count int64
		if err := rows.Scan(&device, &count); err != nil {
			return nil, fmt.Errorf("failed to scan device breakdown: %w", err)
		}
		breakdown[device] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to compute device breakdown: %w", err)
	}

	return breakdown, nil
}

func (r *PostgresRepository) EventsByUser(ctx context.Context, userID string, limit int) ([]*models.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, app_id, event_type, url, referrer, device, ip_address, timestamp, metadata
		FROM events
		WHERE metadata->>'userId' = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(
			&e.ID, &e.AppID, &e.EventType, &e.URL, &e.Referrer,
			&e.Device, &e.IPAddress, &e.Timestamp, &e.Metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list user events: %w", err)
	}

	return events, nil
}

func (r *PostgresRepository) CountEventsByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM events WHERE metadata->>'userId' = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user events: %w", err)
	}
	return count, nil
}
