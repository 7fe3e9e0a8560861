package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sitepulse/sitepulse/internal/models"
)

// InMemoryRepository is a map-backed store for development and tests.
// It enforces the same uniqueness rules as the Postgres schema.
type InMemoryRepository struct {
	users       map[string]*models.User // keyed by email
	apps        map[string]*models.App  // keyed by ID
	appsByEmail map[string]*models.App
	appsByHash  map[string]*models.App
	events      []*models.Event
	nextEventID int64
	mu          sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users:       make(map[string]*models.User),
		apps:        make(map[string]*models.App),
		appsByEmail: make(map[string]*models.App),
		appsByHash:  make(map[string]*models.App),
		nextEventID: 1,
	}
}

func (r *InMemoryRepository) GetOrCreateUserByEmail(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[user.Email]; ok {
		return existing, nil
	}

	created := *user
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}
	r.users[created.Email] = &created
	return &created, nil
}

func (r *InMemoryRepository) CreateApp(ctx context.Context, app *models.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appsByEmail[app.OwnerEmail]; exists {
		return ErrDuplicateOwner
	}
	if _, exists := r.appsByHash[app.APIKeyHash]; exists {
		return ErrDuplicateKeyHash
	}

	stored := *app
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.apps[stored.ID] = &stored
	r.appsByEmail[stored.OwnerEmail] = &stored
	r.appsByHash[stored.APIKeyHash] = &stored
	return nil
}

func (r *InMemoryRepository) GetAppByID(ctx context.Context, id string) (*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, exists := r.apps[id]
	if !exists {
		return nil, ErrAppNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *InMemoryRepository) ListApps(ctx context.Context) ([]*models.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apps := make([]*models.App, 0, len(r.apps))
	for _, app := range r.apps {
		copied := *app
		apps = append(apps, &copied)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

func (r *InMemoryRepository) RevokeApp(ctx context.Context, id string, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, exists := r.apps[id]
	if !exists {
		return ErrAppNotFound
	}
	if app.Revoked {
		return ErrAlreadyRevoked
	}

	app.Revoked = true
	ts := revokedAt
	app.RevokedAt = &ts
	return nil
}

func (r *InMemoryRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = r.nextEventID
	r.nextEventID++

	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *InMemoryRepository) CountEvents(ctx context.Context, filter models.EventFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, e := range r.events {
		if filter.Matches(e) {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryRepository) CountUniqueUsers(ctx context.Context, filter models.EventFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.events {
		if !filter.Matches(e) {
			continue
		}
		if userID := e.MetadataUserID(); userID != "" {
			seen[userID] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (r *InMemoryRepository) DeviceBreakdown(ctx context.Context, filter models.EventFilter) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	breakdown := make(map[string]int64)
	for _, e := range r.events {
		if !filter.Matches(e) {
			continue
		}
		device := e.Device
		if device == "" {
			device = "unknown"
		}
		breakdown[device]++
	}
	return breakdown, nil
}

func (r *InMemoryRepository) EventsByUser(ctx context.Context, userID string, limit int) ([]*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Event
	for _, e := range r.events {
		if e.MetadataUserID() == userID {
			copied := *e
			matched = append(matched, &copied)
		}
	}

	// Newest first; event IDs break timestamp ties.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *InMemoryRepository) CountEventsByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, e := range r.events {
		if e.MetadataUserID() == userID {
			count++
		}
	}
	return count, nil
}
