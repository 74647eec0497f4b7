package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

type TaskResponse struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	Status          bool       `json:"status"`
	StatusDisplay   string     `json:"status_display"`
	Priority        string     `json:"priority"`
	PriorityDisplay string     `json:"priority_display"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DueDate         *time.Time `json:"due_date"`
}

func NewTaskResponse(task models.Task) TaskResponse {
	return TaskResponse{
		ID:              task.ID,
		Title:           task.Title,
		Description:     task.Description,
		Status:          task.Status,
		StatusDisplay:   task.StatusDisplay(),
		Priority:        task.Priority,
		PriorityDisplay: task.PriorityDisplay(),
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
		DueDate:         task.DueDate,
	}
}

type TaskListResponse struct {
	Count    int64          `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []TaskResponse `json:"results"`
}

type TaskActionResponse struct {
	Message string       `json:"message"`
	Task    TaskResponse `json:"task"`
}

// taskID parses the path id. Malformed ids are reported like unknown ones.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}

	params := services.ListParams{
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid page."})
			return
		}
		params.Page = page
	}

	page, err := h.taskService.List(c.Request.Context(), owner, params)
	if err != nil {
		handleTaskError(c, h.logger, err, false)
		return
	}

	response := TaskListResponse{
		Count:   page.Count,
		Results: make([]TaskResponse, 0, len(page.Results)),
	}
	for _, task := range page.Results {
		response.Results = append(response.Results, NewTaskResponse(task))
	}
	if page.HasNext() {
		next := pageURL(c, page.Page+1)
		response.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(c, page.Page-1)
		response.Previous = &prev
	}

	c.JSON(http.StatusOK, response)
}

// pageURL rebuilds the request URL pointing at another page. The first page
// is linked without a page parameter.
func pageURL(c *gin.Context, page int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	query := c.Request.URL.Query()
	if page <= 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(page))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if !bindJSON(c, &input) {
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), owner, input)
	if err != nil {
		handleTaskError(c, h.logger, err, true)
		return
	}
	c.JSON(http.StatusCreated, NewTaskResponse(task))
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.Get(c.Request.Context(), owner, id)
	if err != nil {
		handleTaskError(c, h.logger, err, false)
		return
	}
	c.JSON(http.StatusOK, NewTaskResponse(task))
}

// UpdateTask handles PUT, which requires every writable field the task
// cannot default.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	h.update(c, false)
}

// PartialUpdateTask handles PATCH.
func (h *TaskHandler) PartialUpdateTask(c *gin.Context) {
	h.update(c, true)
}

func (h *TaskHandler) update(c *gin.Context, partial bool) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var input services.TaskInput
	if !bindJSON(c, &input) {
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), owner, id, input, partial)
	if err != nil {
		handleTaskError(c, h.logger, err, true)
		return
	}
	c.JSON(http.StatusOK, NewTaskResponse(task))
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	title, err := h.taskService.Delete(c.Request.Context(), owner, id)
	if err != nil {
		handleTaskError(c, h.logger, err, true)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "task deleted", "owner", owner, "task_id", id, "title", title)
	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) MarkComplete(c *gin.Context) {
	h.setStatus(c, true)
}

func (h *TaskHandler) MarkIncomplete(c *gin.Context) {
	h.setStatus(c, false)
}

func (h *TaskHandler) setStatus(c *gin.Context, done bool) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	var (
		task    models.Task
		err     error
		message string
	)
	if done {
		task, err = h.taskService.MarkComplete(c.Request.Context(), owner, id)
		message = "Task marked as completed"
	} else {
		task, err = h.taskService.MarkIncomplete(c.Request.Context(), owner, id)
		message = "Task marked as incomplete"
	}
	if err != nil {
		handleTaskError(c, h.logger, err, true)
		return
	}

	c.JSON(http.StatusOK, TaskActionResponse{Message: message, Task: NewTaskResponse(task)})
}

func (h *TaskHandler) GetStatistics(c *gin.Context) {
	owner, ok := currentUser(c)
	if !ok {
		return
	}

	stats, err := h.taskService.Statistics(c.Request.Context(), owner)
	if err != nil {
		handleTaskError(c, h.logger, err, false)
		return
	}
	c.JSON(http.StatusOK, stats)
}
