package domain

import "time"

// TaskStatus is the state of a DeferredTask
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// TaskKindNotification is the only task kind today: deliver a Notification payload
const TaskKindNotification = "notification"

// DeferredTask Model. A durable unit of work due at DueAt, consumed by the task worker.
type DeferredTask struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Kind      string     `gorm:"size:32;not null" json:"kind"`
	Payload   []byte     `gorm:"not null" json:"payload"`
	DueAt     time.Time  `gorm:"index:idx_task_status_due" json:"due_at"`
	Status    TaskStatus `gorm:"size:16;not null;default:pending;index:idx_task_status_due" json:"status"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError string     `gorm:"size:512" json:"last_error,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Notification is the payload of a notification task
type Notification struct {
	RecipientID uint   `json:"recipient_id"`
	Address     string `json:"address"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
}
