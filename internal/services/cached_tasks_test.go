package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTaskService struct {
	TaskService
	gets  int
	stats int
}

func (c *countingTaskService) Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	c.gets++
	return c.TaskService.Get(ctx, owner, id)
}

func (c *countingTaskService) Statistics(ctx context.Context, owner uuid.UUID) (Statistics, error) {
	c.stats++
	return c.TaskService.Statistics(ctx, owner)
}

// brokenCache fails every operation.
type brokenCache struct{}

var errBrokenCache = errors.New("cache offline")

func (brokenCache) Set(context.Context, string, interface{}, time.Duration) error { return errBrokenCache }
func (brokenCache) Get(context.Context, string, interface{}) error { return errBrokenCache }
func (brokenCache) Delete(context.Context, ...string) error { return errBrokenCache }
func (brokenCache) Stats() map[string]interface{} { return nil }
func (brokenCache) Health(context.Context) error { return errBrokenCache }
func (brokenCache) Close() error { return nil }

func newCachedEnv(t *testing.T, c cache.Cache) (*testEnv, *countingTaskService, *CachedTaskService) {
	t.Helper()
	env := newTestEnv(t)
	counting := &countingTaskService{TaskService: env.tasks}
	return env, counting, NewCachedTaskService(counting, c, nil)
}

func TestCachedTaskService_GetIsCached(t *testing.T) {
	env, counting, svc := newCachedEnv(t, cache.NewMultiLevelCache(nil, nil))
	ctx := context.Background()
	owner := env.register(t, "alice", "S3cure!pass").ID

	task, err := svc.Create(ctx, owner, title("Cached"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cached", got.Title)
	assert.Equal(t, 0, counting.gets, "create primes the cache")

	done, err := svc.MarkComplete(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, done.Status)

	got, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Status, "mutations must invalidate the cached task")
	assert.Equal(t, 1, counting.gets)

	_, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.gets)
}

func TestCachedTaskService_OwnerScopedKeys(t *testing.T) {
	env, _, svc := newCachedEnv(t, cache.NewMultiLevelCache(nil, nil))
	ctx := context.Background()
	alice := env.register(t, "alice", "S3cure!pass").ID
	bob := env.register(t, "bob", "An0ther!pass").ID

	task, err := svc.Create(ctx, alice, title("Alice only"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestCachedTaskService_StatisticsInvalidation(t *testing.T) {
	env, counting, svc := newCachedEnv(t, cache.NewMultiLevelCache(nil, nil))
	ctx := context.Background()
	owner := env.register(t, "alice", "S3cure!pass").ID

	stats, err := svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	_, err = svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.stats)

	task, err := svc.Create(ctx, owner, title("Buy milk"))
	require.NoError(t, err)
	stats, err = svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	_, err = svc.MarkComplete(ctx, owner, task.ID)
	require.NoError(t, err)
	stats, err = svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.CompletionPercentage)

	_, err = svc.Delete(ctx, owner, task.ID)
	require.NoError(t, err)
	stats, err = svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Equal(t, 4, counting.stats)
}

// newSharedCache builds the cache the server uses when redis is enabled.
func newSharedCache(t *testing.T, mr *miniredis.Miniredis) *cache.MultiLevelCache {
	t.Helper()
	redisCache := cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { redisCache.Close() })
	return cache.NewMultiLevelCache(cache.NewMemoryCache(0), redisCache, cache.WithSharedKeys(TaskCachePrefixes...))
}

func TestCachedTaskService_RedisBacked(t *testing.T) {
	mr := miniredis.RunT(t)
	env, counting, svc := newCachedEnv(t, newSharedCache(t, mr))
	ctx := context.Background()
	owner := env.register(t, "alice", "S3cure!pass").ID

	task, err := svc.Create(ctx, owner, title("Shared"))
	require.NoError(t, err)
	_, err = svc.Statistics(ctx, owner)
	require.NoError(t, err)

	assert.True(t, mr.Exists(taskKey(owner, task.ID)))
	assert.True(t, mr.Exists(statsKey(owner)))

	_, err = svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Zero(t, counting.gets)

	_, err = svc.Delete(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(taskKey(owner, task.ID)))
	assert.False(t, mr.Exists(statsKey(owner)))
}

func TestCachedTaskService_FailedInvalidationIsNotServed(t *testing.T) {
	for name, opts := range map[string][]cache.MultiLevelOption{
		"shared keys": {cache.WithSharedKeys(TaskCachePrefixes...)},
		"local tier":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			redisCache := cache.NewRedisCache(&cache.CacheConfig{Addr: mr.Addr(), MaxRetries: -1})
			t.Cleanup(func() { redisCache.Close() })

			env, _, svc := newCachedEnv(t, cache.NewMultiLevelCache(cache.NewMemoryCache(0), redisCache, opts...))
			ctx := context.Background()
			owner := env.register(t, "alice", "S3cure!pass").ID

			task, err := svc.Create(ctx, owner, title("Buy milk"))
			require.NoError(t, err)
			stats, err := svc.Statistics(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, Statistics{Total: 1, Pending: 1}, stats)

			mr.SetError("LOADING Redis is loading the dataset in memory")
			done, err := svc.MarkComplete(ctx, owner, task.ID)
			require.NoError(t, err, "cache failures never fail a mutation")
			assert.True(t, done.Status)
			mr.SetError("")

			stats, err = svc.Statistics(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, Statistics{Total: 1, Completed: 1, CompletionPercentage: 100}, stats)

			got, err := svc.Get(ctx, owner, task.ID)
			require.NoError(t, err)
			assert.True(t, got.Status)
		})
	}
}

func TestCachedTaskService_InstancesShareInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newTestEnv(t)
	a := NewCachedTaskService(env.tasks, newSharedCache(t, mr), nil)
	b := NewCachedTaskService(env.tasks, newSharedCache(t, mr), nil)
	ctx := context.Background()
	owner := env.register(t, "alice", "S3cure!pass").ID

	task, err := a.Create(ctx, owner, title("Buy milk"))
	require.NoError(t, err)
	_, err = a.Statistics(ctx, owner)
	require.NoError(t, err)
	_, err = a.Get(ctx, owner, task.ID)
	require.NoError(t, err)

	_, err = b.MarkComplete(ctx, owner, task.ID)
	require.NoError(t, err)

	stats, err := a.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, Statistics{Total: 1, Completed: 1, CompletionPercentage: 100}, stats)

	got, err := a.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.True(t, got.Status)
}

func TestCachedTaskService_CacheFailuresAreIgnored(t *testing.T) {
	env, counting, svc := newCachedEnv(t, brokenCache{})
	ctx := context.Background()
	owner := env.register(t, "alice", "S3cure!pass").ID

	task, err := svc.Create(ctx, owner, title("Resilient"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = svc.Update(ctx, owner, task.ID, TaskInput{Priority: Some(models.PriorityLow)}, true)
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	page, err := svc.List(ctx, owner, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Count)
	assert.Equal(t, 1, counting.gets)
}
