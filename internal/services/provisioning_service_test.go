package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/BradenHooton/lantern/internal/models"
	pkglogger "github.com/BradenHooton/lantern/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGroup string

func (g staticGroup) DefaultGroup(ctx context.Context) string { return string(g) }

type provisionCounter struct {
	mu sync.Mutex
	n  int
}

func (c *provisionCounter) RecordUserProvisioned() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func newProvisioner(users UserRepository, group string, recorder ProvisionRecorder) *ProvisioningService {
	logger := slog.Default()
	return NewProvisioningService(users, staticGroup(group), recorder, pkglogger.NewAuditLogger(logger), logger)
}

func TestEnsureUser_CreatesWithDefaultGroupAndNoPassword(t *testing.T) {
	repo := newMemoryUserRepository()
	counter := &provisionCounter{}
	svc := newProvisioner(repo, "viewers", counter)

	user, err := svc.EnsureUser(context.Background(), "alice", "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "viewers", user.Group)
	assert.False(t, user.HasUsableCredential())
	assert.Equal(t, 1, counter.n)
}

func TestEnsureUser_ReturnsExistingUnchanged(t *testing.T) {
	repo := newMemoryUserRepository()
	existing, err := repo.Create(context.Background(), &models.User{Username: "alice", Group: models.GroupAdmin, PasswordHash: "hash"})
	require.NoError(t, err)
	counter := &provisionCounter{}
	svc := newProvisioner(repo, models.GroupUser, counter)

	user, err := svc.EnsureUser(context.Background(), "alice", "")

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, models.GroupAdmin, user.Group)
	assert.Equal(t, 0, counter.n)
}

func TestEnsureUser_FillsMissingEmailOnly(t *testing.T) {
	repo := newMemoryUserRepository()
	_, _ = repo.Create(context.Background(), &models.User{Username: "alice"})
	_, _ = repo.Create(context.Background(), &models.User{Username: "bob", Email: "bob@old.example"})
	svc := newProvisioner(repo, models.GroupUser, nil)

	alice, err := svc.EnsureUser(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", alice.Email)

	bob, err := svc.EnsureUser(context.Background(), "bob", "bob@new.example")
	require.NoError(t, err)
	assert.Equal(t, "bob@old.example", bob.Email)
}

func TestEnsureUser_UsernameIsCaseSensitive(t *testing.T) {
	repo := newMemoryUserRepository()
	svc := newProvisioner(repo, models.GroupUser, nil)

	a, err := svc.EnsureUser(context.Background(), "Alice", "")
	require.NoError(t, err)
	b, err := svc.EnsureUser(context.Background(), "alice", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnsureUser_EmptyUsernameRejected(t *testing.T) {
	svc := newProvisioner(newMemoryUserRepository(), models.GroupUser, nil)

	_, err := svc.EnsureUser(context.Background(), "   ", "x@example.com")

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestEnsureUser_ConflictRereadsWinner(t *testing.T) {
	winner := NewTestUser("winner", "alice", models.GroupUser)
	lookups := 0
	repo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			lookups++
			if lookups == 1 {
				return nil, models.ErrNotFound
			}
			return winner, nil
		},
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	counter := &provisionCounter{}
	svc := newProvisioner(repo, models.GroupUser, counter)

	user, err := svc.EnsureUser(context.Background(), "alice", "")

	require.NoError(t, err)
	assert.Equal(t, "winner", user.ID)
	assert.Equal(t, 2, lookups)
	assert.Equal(t, 0, counter.n)
}

func TestEnsureUser_StorageFailure(t *testing.T) {
	repo := &MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newProvisioner(repo, models.GroupUser, nil)

	user, err := svc.EnsureUser(context.Background(), "alice", "")

	assert.Error(t, err)
	assert.Nil(t, user)
}

func TestEnsureUser_ConcurrentFirstSightCreatesOneAccount(t *testing.T) {
	repo := newMemoryUserRepository()
	counter := &provisionCounter{}
	svc := newProvisioner(repo, models.GroupUser, counter)

	const workers = 32
	start := make(chan struct{})
	ids := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			user, err := svc.EnsureUser(context.Background(), "alice", "")
			errs[i] = err
			if user != nil {
				ids[i] = user.ID
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	count, _ := repo.Count(context.Background())
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, counter.n)
}

func TestEnsureUser_LogsMaskedEmail(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	repo := newMemoryUserRepository()
	_, _ = repo.Create(context.Background(), &models.User{Username: "bob"})
	svc := NewProvisioningService(repo, staticGroup(models.GroupUser), nil, pkglogger.NewAuditLogger(logger), logger)

	_, err := svc.EnsureUser(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	_, err = svc.EnsureUser(context.Background(), "bob", "bob@corp.example")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "a****@*******.com")
	assert.Contains(t, out, "b**@****.example")
	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "bob@corp.example")
}
