package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"task-tracker/backend/internal/database"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db       *gorm.DB
	clock    *testClock
	users    repositories.UserRepository
	tokens   repositories.TokenRepository
	tasks    TaskService
	accounts AccountService
	auth     AuthService
	jwt      *TokenManager
}

func newTestEnv(t *testing.T, opts ...TaskServiceOption) *testEnv {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:   database.DriverSQLite,
		DSN:      ":memory:",
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	require.NoError(t, database.AutoMigrate(pool.DB))

	clock := newTestClock()
	hasher := NewPasswordHasher(bcrypt.MinCost)

	jwtManager := NewTokenManager(TokenConfig{
		Secret:     "test-secret",
		Issuer:     "task-tracker-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	jwtManager.now = clock.Now

	env := &testEnv{
		db:     pool.DB,
		clock:  clock,
		users:  repositories.NewUserRepository(pool.DB),
		tokens: repositories.NewTokenRepository(pool.DB),
		jwt:    jwtManager,
	}

	env.tasks = NewTaskService(repositories.NewTaskRepository(pool.DB),
		append([]TaskServiceOption{WithClock(clock.Now)}, opts...)...)
	env.accounts = NewAccountService(env.users, hasher)

	auth := NewAuthService(env.users, env.tokens, jwtManager, hasher, nil).(*authService)
	auth.now = clock.Now
	env.auth = auth

	return env
}

func (e *testEnv) register(t *testing.T, username, password string) models.Profile {
	t.Helper()
	profile, err := e.accounts.Register(context.Background(), RegistrationRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  password,
		Password2: password,
	})
	require.NoError(t, err)
	return profile
}

func title(s string) TaskInput {
	return TaskInput{Title: Some(s)}
}

func requireFieldError(t *testing.T, err error, field, message string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields[field], message, "fields: %v", verr.Fields)
}
