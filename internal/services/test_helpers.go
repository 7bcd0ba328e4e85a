package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BradenHooton/lantern/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc         func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc   func(ctx context.Context, username string) (*models.User, error)
	CreateFunc          func(ctx context.Context, user *models.User) (*models.User, error)
	UpdateLastLoginFunc func(ctx context.Context, id string, at time.Time) error
	SetEmailIfEmptyFunc func(ctx context.Context, id, email string) error
	CountFunc           func(ctx context.Context) (int, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if m.UpdateLastLoginFunc != nil {
		return m.UpdateLastLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *MockUserRepository) SetEmailIfEmpty(ctx context.Context, id, email string) error {
	if m.SetEmailIfEmptyFunc != nil {
		return m.SetEmailIfEmptyFunc(ctx, id, email)
	}
	return nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 0, nil
}

// MockSessionRepository implements SessionRepository for testing
type MockSessionRepository struct {
	CreateFunc         func(ctx context.Context, session *models.Session) error
	GetByTokenHashFunc func(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteFunc         func(ctx context.Context, tokenHash string) error
	DeleteByUserIDFunc func(ctx context.Context, userID string) (int64, error)
	DeleteExpiredFunc  func(ctx context.Context, now time.Time) (int64, error)
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	return nil
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	if m.GetByTokenHashFunc != nil {
		return m.GetByTokenHashFunc(ctx, tokenHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, tokenHash string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tokenHash)
	}
	return nil
}

func (m *MockSessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	if m.DeleteByUserIDFunc != nil {
		return m.DeleteByUserIDFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

// MockSettingsRepository implements SettingsRepository for testing
type MockSettingsRepository struct {
	GetManyFunc func(ctx context.Context, keys ...string) (map[string]string, error)
	SetManyFunc func(ctx context.Context, values map[string]string) error
}

func (m *MockSettingsRepository) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if m.GetManyFunc != nil {
		return m.GetManyFunc(ctx, keys...)
	}
	return map[string]string{}, nil
}

func (m *MockSettingsRepository) SetMany(ctx context.Context, values map[string]string) error {
	if m.SetManyFunc != nil {
		return m.SetManyFunc(ctx, values)
	}
	return nil
}

// memoryUserRepository enforces username uniqueness the way the database does
type memoryUserRepository struct {
	mu      sync.Mutex
	byName  map[string]*models.User
	nextID  int
	creates int
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{byName: make(map[string]*models.User)}
}

func (m *memoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id {
			clone := *u
			return &clone, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byName[username]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, models.ErrNotFound
}

func (m *memoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, ok := m.byName[user.Username]; ok {
		return nil, models.ErrConflict
	}
	m.nextID++
	stored := *user
	stored.ID = fmt.Sprintf("user-%d", m.nextID)
	stored.CreatedAt = time.Now()
	m.byName[user.Username] = &stored
	clone := stored
	return &clone, nil
}

func (m *memoryUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *memoryUserRepository) SetEmailIfEmpty(ctx context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byName {
		if u.ID == id && u.Email == "" {
			u.Email = email
		}
	}
	return nil
}

func (m *memoryUserRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byName), nil
}

// NewTestUser creates a test user
func NewTestUser(id, username, group string) *models.User {
	return &models.User{
		ID:        id,
		Username:  username,
		Group:     group,
		CreatedAt: time.Now(),
	}
}
