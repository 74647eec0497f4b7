package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const TitleMaxLength = 255

var priorityLabels = map[string]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
}

// ValidPriority reports whether p is one of low, medium or high.
func ValidPriority(p string) bool {
	_, ok := priorityLabels[p]
	return ok
}

// PriorityRank orders priorities low < medium < high. Unknown values rank 0.
func PriorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index:idx_tasks_user_status,priority:1;index:idx_tasks_user_created,priority:1"`
	Title       string     `json:"title" gorm:"size:255;not null"`
	Description *string    `json:"description" gorm:"type:text"`
	Status      bool       `json:"status" gorm:"not null;default:false;index:idx_tasks_user_status,priority:2"`
	Priority    string     `json:"priority" gorm:"size:10;not null;default:'medium'"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index:idx_tasks_user_created,priority:2"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return nil
}

func (t *Task) StatusDisplay() string {
	if t.Status {
		return "Completed"
	}
	return "Pending"
}

func (t *Task) PriorityDisplay() string {
	return priorityLabels[t.Priority]
}
