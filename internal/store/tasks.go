package store

import (
	"context"
	"time"

	"ledger_system/internal/domain"

	"gorm.io/gorm"
)

// EnqueueTask persists a deferred task so it survives restarts
func (s *Store) EnqueueTask(ctx context.Context, t *domain.DeferredTask) error {
	t.Status = domain.TaskPending
	return s.conn(ctx).Create(t).Error
}

// ClaimDueTasks marks up to limit due tasks as processing and returns them. Tasks stuck in processing
// since before staleBefore are claimed again. Each claim is a conditional update, so concurrent
// workers never both win the same task.
func (s *Store) ClaimDueTasks(ctx context.Context, now, staleBefore time.Time, limit int) ([]domain.DeferredTask, error) {
	var candidates []domain.DeferredTask
	err := s.conn(ctx).
		Where("(status = ? AND due_at <= ?) OR (status = ? AND claimed_at < ?)",
			domain.TaskPending, now, domain.TaskProcessing, staleBefore).
		Order("due_at").Order("id").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.DeferredTask, 0, len(candidates))
	for _, t := range candidates {
		q := s.conn(ctx).Model(&domain.DeferredTask{}).Where("id = ? AND status = ?", t.ID, t.Status)
		if t.Status == domain.TaskProcessing {
			q = q.Where("claimed_at < ?", staleBefore)
		}
		res := q.Updates(map[string]any{"status": domain.TaskProcessing, "claimed_at": now})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			t.Status = domain.TaskProcessing
			t.ClaimedAt = &now
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

// MarkTaskDone finishes a task
func (s *Store) MarkTaskDone(ctx context.Context, id uint) error {
	return s.conn(ctx).Model(&domain.DeferredTask{}).Where("id = ?", id).
		Updates(map[string]any{"status": domain.TaskDone, "last_error": ""}).Error
}

// RescheduleTask returns a task to pending after a failed attempt
func (s *Store) RescheduleTask(ctx context.Context, id uint, dueAt time.Time, reason string) error {
	return s.conn(ctx).Model(&domain.DeferredTask{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.TaskPending,
			"due_at":     dueAt,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": truncate(reason, 512),
			"claimed_at": nil,
		}).Error
}

// FailTask gives up on a task
func (s *Store) FailTask(ctx context.Context, id uint, reason string) error {
	return s.conn(ctx).Model(&domain.DeferredTask{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.TaskFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": truncate(reason, 512),
		}).Error
}

// GetTask loads a task by id
func (s *Store) GetTask(ctx context.Context, id uint) (*domain.DeferredTask, error) {
	var t domain.DeferredTask
	if err := s.conn(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
