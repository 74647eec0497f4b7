package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"task-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

// Sortable task columns.
const (
	OrderCreatedAt = "created_at"
	OrderDueDate   = "due_date"
	OrderPriority  = "priority"
)

const priorityRankSQL = "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END"

type TaskQuery struct {
	Status  *bool
	Search  string
	OrderBy string
	Desc    bool
	Offset  int
	Limit   int
}

// TaskRepository gives access to tasks of a single owner at a time. There is
// deliberately no method that reads or writes a task without its owner id.
type TaskRepository interface {
	List(ctx context.Context, owner uuid.UUID, q TaskQuery) ([]models.Task, int64, error)
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error)
	Update(ctx context.Context, owner uuid.UUID, task *models.Task) error
	Delete(ctx context.Context, owner, id uuid.UUID) error
	Counts(ctx context.Context, owner uuid.UUID) (total, completed int64, err error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) owned(ctx context.Context, owner uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", owner)
}

func (r *taskRepository) List(ctx context.Context, owner uuid.UUID, q TaskQuery) ([]models.Task, int64, error) {
	query := r.owned(ctx, owner)

	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	tasks := []models.Task{}
	if total == 0 {
		return tasks, 0, nil
	}

	query = applyOrder(query, q.OrderBy, q.Desc)
	if q.Limit > 0 {
		query = query.Limit(q.Limit).Offset(q.Offset)
	}
	if err := query.Find(&tasks).Error; err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// applyOrder sorts on one whitelisted column. Ties always fall back to the
// newest task first. Tasks without a due date sort after dated ones.
func applyOrder(query *gorm.DB, orderBy string, desc bool) *gorm.DB {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}

	switch orderBy {
	case OrderPriority:
		query = query.Order(priorityRankSQL + " " + dir)
	case OrderDueDate:
		query = query.Order("due_date IS NULL").Order("due_date " + dir)
	default:
		return query.Order("created_at " + dir).Order("id")
	}
	return query.Order("created_at DESC").Order("id")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	var task models.Task
	err := r.owned(ctx, owner).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task, ErrNotFound
	}
	if err != nil {
		return task, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update writes every mutable column, including a nil due date.
func (r *taskRepository) Update(ctx context.Context, owner uuid.UUID, task *models.Task) error {
	result := r.owned(ctx, owner).Where("id = ?", task.ID).Updates(map[string]interface{}{
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"due_date":    task.DueDate,
		"updated_at":  task.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, owner, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) Counts(ctx context.Context, owner uuid.UUID) (int64, int64, error) {
	var row struct {
		Total     int64
		Completed int64
	}
	err := r.owned(ctx, owner).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN status THEN 1 ELSE 0 END), 0) AS completed").
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return row.Total, row.Completed, nil
}
