package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sitepulse/sitepulse/internal/models"
)

var (
	ErrAppNotFound      = errors.New("app not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrDuplicateOwner   = errors.New("owner email already registered with an app")
	ErrDuplicateKeyHash = errors.New("api key hash already exists")
	ErrAlreadyRevoked   = errors.New("app already revoked")
)

// Repository is the persistence boundary for apps, owners and events.
// Uniqueness (owner email, key hash) is enforced at the store so concurrent
// check-then-create sequences cannot race past each other.
type Repository interface {
	// GetOrCreateUserByEmail returns the existing owner for email or creates one.
	GetOrCreateUserByEmail(ctx context.Context, user *models.User) (*models.User, error)

	// CreateApp inserts a new app row. Duplicate owner email yields
	// ErrDuplicateOwner, duplicate key hash ErrDuplicateKeyHash.
	CreateApp(ctx context.Context, app *models.App) error
	GetAppByID(ctx context.Context, id string) (*models.App, error)
	ListApps(ctx context.Context) ([]*models.App, error)

	// RevokeApp atomically flips revoked to true. Exactly one concurrent
	// caller succeeds; later calls observe ErrAlreadyRevoked.
	RevokeApp(ctx context.Context, id string, revokedAt time.Time) error

	// CreateEvent persists an immutable event and fills in its assigned ID.
	CreateEvent(ctx context.Context, event *models.Event) error

	CountEvents(ctx context.Context, filter models.EventFilter) (int64, error)
	CountUniqueUsers(ctx context.Context, filter models.EventFilter) (int64, error)
	DeviceBreakdown(ctx context.Context, filter models.EventFilter) (map[string]int64, error)

	EventsByUser(ctx context.Context, userID string, limit int) ([]*models.Event, error)
	CountEventsByUser(ctx context.Context, userID string) (int64, error)
}
