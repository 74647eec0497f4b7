package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"

	"github.com/gofrs/uuid"
)

const DefaultPageSize = 10

type ListParams struct {
	Status   string
	Search   string
	Ordering string
	Page     int
}

type TaskPage struct {
	Count    int64
	Page     int
	PageSize int
	Results  []models.Task
}

func (p TaskPage) HasNext() bool {
	return int64(p.Page*p.PageSize) < p.Count
}

func (p TaskPage) HasPrevious() bool {
	return p.Page > 1
}

// TaskInput holds client supplied task fields. Unset fields keep their
// current value on update.
type TaskInput struct {
	Title       Optional[string]    `json:"title"`
	Description Optional[string]    `json:"description"`
	Status      Optional[bool]      `json:"status"`
	Priority    Optional[string]    `json:"priority"`
	DueDate     Optional[time.Time] `json:"due_date"`
}

type Statistics struct {
	Total                int64   `json:"total"`
	Completed            int64   `json:"completed"`
	Pending              int64   `json:"pending"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

type TaskService interface {
	List(ctx context.Context, owner uuid.UUID, params ListParams) (TaskPage, error)
	Create(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error)
	Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error)
	Update(ctx context.Context, owner, id uuid.UUID, input TaskInput, partial bool) (models.Task, error)
	Delete(ctx context.Context, owner, id uuid.UUID) (string, error)
	MarkComplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error)
	MarkIncomplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error)
	Statistics(ctx context.Context, owner uuid.UUID) (Statistics, error)
}

type TaskServiceOption func(*taskService)

// WithClock replaces the wall clock used for timestamps and due date checks.
func WithClock(now func() time.Time) TaskServiceOption {
	return func(s *taskService) { s.now = now }
}

func WithPageSize(size int) TaskServiceOption {
	return func(s *taskService) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

type taskService struct {
	repo     repositories.TaskRepository
	now      func() time.Time
	pageSize int
}

func NewTaskService(repo repositories.TaskRepository, opts ...TaskServiceOption) TaskService {
	s := &taskService{repo: repo, now: time.Now, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *taskService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// touch returns a modification time strictly after prev.
func (s *taskService) touch(prev time.Time) time.Time {
	now := s.clock()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (s *taskService) List(ctx context.Context, owner uuid.UUID, params ListParams) (TaskPage, error) {
	page := params.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return TaskPage{}, ErrInvalidPage
	}

	query := repositories.TaskQuery{
		Search: strings.TrimSpace(params.Search),
		Offset: (page - 1) * s.pageSize,
		Limit:  s.pageSize,
	}
	switch params.Status {
	case "completed":
		done := true
		query.Status = &done
	case "pending":
		pending := false
		query.Status = &pending
	}
	query.OrderBy, query.Desc = parseOrdering(params.Ordering)

	tasks, total, err := s.repo.List(ctx, owner, query)
	if err != nil {
		return TaskPage{}, err
	}
	if page > 1 && int64(query.Offset) >= total {
		return TaskPage{}, ErrInvalidPage
	}

	return TaskPage{Count: total, Page: page, PageSize: s.pageSize, Results: tasks}, nil
}

// parseOrdering accepts a comma separated ordering and uses the first
// recognised field. Anything else falls back to newest first.
func parseOrdering(ordering string) (string, bool) {
	for _, term := range strings.Split(ordering, ",") {
		term = strings.TrimSpace(term)
		desc := strings.HasPrefix(term, "-")
		field := strings.TrimPrefix(term, "-")
		switch field {
		case repositories.OrderCreatedAt, repositories.OrderDueDate, repositories.OrderPriority:
			return field, desc
		}
	}
	return repositories.OrderCreatedAt, true
}

func (s *taskService) Create(ctx context.Context, owner uuid.UUID, input TaskInput) (models.Task, error) {
	now := s.clock()
	task := models.Task{
		UserID:    owner,
		Priority:  models.PriorityMedium,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.apply(&task, input, true, now); err != nil {
		return models.Task{}, err
	}
	// New tasks always start pending.
	task.Status = false

	if err := s.repo.Create(ctx, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (s *taskService) Get(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	task, err := s.repo.Get(ctx, owner, id)
	if err != nil {
		return models.Task{}, translateNotFound(err)
	}
	return task, nil
}

func (s *taskService) Update(ctx context.Context, owner, id uuid.UUID, input TaskInput, partial bool) (models.Task, error) {
	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return models.Task{}, err
	}

	now := s.clock()
	if err := s.apply(&task, input, !partial, now); err != nil {
		return models.Task{}, err
	}
	task.UpdatedAt = s.touch(task.UpdatedAt)

	if err := s.repo.Update(ctx, owner, &task); err != nil {
		return models.Task{}, translateNotFound(err)
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, owner, id uuid.UUID) (string, error) {
	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return "", err
	}
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return "", translateNotFound(err)
	}
	return task.Title, nil
}

func (s *taskService) MarkComplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	return s.setStatus(ctx, owner, id, true)
}

func (s *taskService) MarkIncomplete(ctx context.Context, owner, id uuid.UUID) (models.Task, error) {
	return s.setStatus(ctx, owner, id, false)
}

func (s *taskService) setStatus(ctx context.Context, owner, id uuid.UUID, done bool) (models.Task, error) {
	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return models.Task{}, err
	}
	task.Status = done
	task.UpdatedAt = s.touch(task.UpdatedAt)

	if err := s.repo.Update(ctx, owner, &task); err != nil {
		return models.Task{}, translateNotFound(err)
	}
	return task, nil
}

func (s *taskService) Statistics(ctx context.Context, owner uuid.UUID) (Statistics, error) {
	total, completed, err := s.repo.Counts(ctx, owner)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Total: total, Completed: completed, Pending: total - completed}
	if total > 0 {
		stats.CompletionPercentage = roundPercent(float64(completed) / float64(total) * 100)
	}
	return stats, nil
}

// roundPercent rounds v to two decimals. Ties on the exact binary value go to
// the even digit.
func roundPercent(v float64) float64 {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return rounded
}

// apply validates input and copies it onto task. requireTitle is set for
// creation and full updates.
func (s *taskService) apply(task *models.Task, input TaskInput, requireTitle bool, now time.Time) error {
	verr := &ValidationError{}

	switch {
	case !input.Title.Set:
		if requireTitle {
			verr.Add("title", msgRequired)
		}
	case input.Title.Null:
		verr.Add("title", msgNotNull)
	default:
		title := strings.TrimSpace(input.Title.Value)
		if title == "" {
			verr.Add("title", "Title cannot be empty")
		} else if utf8.RuneCountInString(title) > models.TitleMaxLength {
			verr.Add("title", fmt.Sprintf("Ensure this field has no more than %d characters.", models.TitleMaxLength))
		} else {
			task.Title = title
		}
	}

	if input.Description.Set {
		if input.Description.Null {
			task.Description = nil
		} else {
			description := input.Description.Value
			task.Description = &description
		}
	}

	if input.Status.Set {
		if input.Status.Null {
			verr.Add("status", msgNotNull)
		} else {
			task.Status = input.Status.Value
		}
	}

	if input.Priority.Set {
		switch {
		case input.Priority.Null:
			verr.Add("priority", msgNotNull)
		case !models.ValidPriority(input.Priority.Value):
			verr.Add("priority", fmt.Sprintf("%q is not a valid choice.", input.Priority.Value))
		default:
			task.Priority = input.Priority.Value
		}
	}

	if input.DueDate.Set {
		if input.DueDate.Null {
			task.DueDate = nil
		} else if input.DueDate.Value.Before(now) {
			verr.Add("due_date", "Due date cannot be in the past")
		} else {
			due := input.DueDate.Value.UTC()
			task.DueDate = &due
		}
	}

	return verr.Err()
}

func translateNotFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrTaskNotFound
	}
	return err
}
