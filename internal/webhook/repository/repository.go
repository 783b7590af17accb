package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tair/shopify-sync/internal/webhook/domain"
)

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Event{})
}

func (r *GormEventRepository) Create(event *domain.Event) error {
	return r.db.Create(event).Error
}

func (r *GormEventRepository) FindByID(id uint) (*domain.Event, error) {
	var event domain.Event
	err := r.db.First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *GormEventRepository) FindAll(filter domain.EventFilter, limit, offset int) ([]domain.Event, error) {
	query := r.db.Model(&domain.Event{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}

	var events []domain.Event
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, err
}

// MarkProcessing claims an event for a worker. The transition is persisted
// before handler dispatch so a crash mid-handler leaves the record visibly
// claimed rather than silently lost.
func (r *GormEventRepository) MarkProcessing(id uint) error {
	return r.updateColumns(id, map[string]interface{}{
		"status": domain.StatusProcessing,
	})
}

func (r *GormEventRepository) MarkCompleted(id uint) error {
	return r.updateColumns(id, map[string]interface{}{
		"status":       domain.StatusCompleted,
		"processed_at": time.Now(),
	})
}

func (r *GormEventRepository) MarkFailed(id uint, errorMessage string) error {
	return r.updateColumns(id, map[string]interface{}{
		"status":        domain.StatusFailed,
		"error_message": errorMessage,
		"processed_at":  time.Now(),
	})
}

func (r *GormEventRepository) Requeue(id uint) error {
	return r.updateColumns(id, map[string]interface{}{
		"status":        domain.StatusPending,
		"retry_count":   gorm.Expr("retry_count + 1"),
		"error_message": "",
	})
}

func (r *GormEventRepository) updateColumns(id uint, columns map[string]interface{}) error {
	result := r.db.Model(&domain.Event{}).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *GormEventRepository) DeleteCompletedBefore(cutoff time.Time) (int64, error) {
	result := r.db.Where("status = ? AND created_at < ?", domain.StatusCompleted, cutoff).
		Delete(&domain.Event{})
	return result.RowsAffected, result.Error
}

// ResetStuckProcessing reclaims events whose worker died mid-processing.
// Anything still in processing since before cutoff goes back to pending with
// retry_count incremented, and is reported so the caller can re-enqueue it.
func (r *GormEventRepository) ResetStuckProcessing(cutoff time.Time) ([]domain.Event, error) {
	var stuck []domain.Event
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND updated_at < ?", domain.StatusProcessing, cutoff).
			Find(&stuck).Error; err != nil {
			return err
		}
		if len(stuck) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(stuck))
		for _, event := range stuck {
			ids = append(ids, event.ID)
		}
		if err := tx.Model(&domain.Event{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":      domain.StatusPending,
				"retry_count": gorm.Expr("retry_count + 1"),
			}).Error; err != nil {
			return err
		}

		// Report the post-update state so re-enqueued attempts carry the
		// bumped retry count.
		for i := range stuck {
			stuck[i].Status = domain.StatusPending
			stuck[i].RetryCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stuck, nil
}
