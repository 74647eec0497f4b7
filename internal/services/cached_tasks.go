package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
)

const (
	taskCacheTTL  = 10 * time.Minute
	statsCacheTTL = 5 * time.Minute
)

// TaskCachePrefixes are the key prefixes CachedTaskService writes. A
// multi-instance deployment must keep them out of any per-process tier.
var TaskCachePrefixes = []string{"task:", "stats:"}

// CachedTaskService serves single task reads and statistics from cache and
// drops the affected entries whenever one of an owner's tasks changes. Cache
// errors are logged and never surface to the caller.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	logger      *slog.Logger
}

var _ TaskService = (*CachedTaskService)(nil)

func NewCachedTaskService(taskService TaskService, c cache.Cache, logger *slog.Logger) *CachedTaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedTaskService{
		taskService: taskService,
		cache:       c,
		logger:      logger,
	}
}

func taskKey(owner, id uuid.UUID) string {
	return fmt.Sprintf("task:%s:%s", owner, id)
}

func statsKey(owner uuid.UUID) string {
	return fmt.Sprintf("stats:%s", owner)
}

func (s *CachedTaskService) List(ctx context.Context, owner uuid.UUID, params ListParams) (TaskPage, error) {
	return s.taskService.List(ctx, owner, params)
}

func (s *CachedTaskService) Create(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.taskService.Create(ctx, owner, input)
	if err != nil {
		return models.Task{}, err
	}
	s.invalidate(ctx, owner, statsKey(owner))
	s.store(ctx, taskKey(owner, task.ID), task, taskCacheTTL)
	return task, nil
}

func (s *CachedTaskService) Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	key := taskKey(owner, id)

	var cached models.Task
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "task cache read failed", "key", key, "error", err)
	}

	task, err := s.taskService.Get(ctx, owner, id)
	if err != nil {
		return models.Task{}, err
	}
	s.store(ctx, key, task, taskCacheTTL)
	return task, nil
}

func (s *CachedTaskService) Update(ctx context.Context, owner, id uuid.UUID, input TaskInput, partial bool) (models.Task, error) {
	task, err := s.taskService.Update(ctx, owner, id, input, partial)
	s.invalidate(ctx, owner, taskKey(owner, id), statsKey(owner))
	return task, err
}

func (s *CachedTaskService) Delete(ctx context.Context, owner, id uuid.UUID) (string, error) {
	title, err := s.taskService.Delete(ctx, owner, id)
	s.invalidate(ctx, owner, taskKey(owner, id), statsKey(owner))
	return title, err
}

func (s *CachedTaskService) MarkComplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	task, err := s.taskService.MarkComplete(ctx, owner, id)
	s.invalidate(ctx, owner, taskKey(owner, id), statsKey(owner))
	return task, err
}

func (s *CachedTaskService) MarkIncomplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	task, err := s.taskService.MarkIncomplete(ctx, owner, id)
	s.invalidate(ctx, owner, taskKey(owner, id), statsKey(owner))
	return task, err
}

func (s *CachedTaskService) Statistics(ctx context.Context, owner uuid.UUID) (Statistics, error) {
	key := statsKey(owner)

	var cached Statistics
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WarnContext(ctx, "statistics cache read failed", "key", key, "error", err)
	}

	stats, err := s.taskService.Statistics(ctx, owner)
	if err != nil {
		return Statistics{}, err
	}
	s.store(ctx, key, stats, statsCacheTTL)
	return stats, nil
}

func (s *CachedTaskService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.WarnContext(ctx, "task cache write failed", "key", key, "error", err)
	}
}

func (s *CachedTaskService) invalidate(ctx context.Context, owner uuid.UUID, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "task cache invalidation failed", "owner", owner, "keys", keys, "error", err)
	}
}
