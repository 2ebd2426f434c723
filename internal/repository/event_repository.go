package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
)

// EventRepository persists the append-only audit log. Events are never
// updated or deleted.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByType(ctx context.Context, eventType string, page, pageSize int) ([]*models.Event, int64, error)
	FindBySubject(ctx context.Context, subject string) ([]*models.Event, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) FindByType(ctx context.Context, eventType string, page, pageSize int) ([]*models.Event, int64, error) {
	var events []*models.Event
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Event{})
	if eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *eventRepository) FindBySubject(ctx context.Context, subject string) ([]*models.Event, error) {
	var events []*models.Event
	err := r.db.WithContext(ctx).
		Where("subject = ?", subject).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
