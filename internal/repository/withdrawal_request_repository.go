package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
)

// WithdrawalRequestRepository persists withdrawal requests through their
// lifecycle.
type WithdrawalRequestRepository interface {
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, id, status string) error
	FindByOwner(ctx context.Context, owner string, page, pageSize int) ([]*models.WithdrawalRequest, int64, error)
	FindByStatus(ctx context.Context, status string) ([]*models.WithdrawalRequest, error)
	ListAll(ctx context.Context, role models.LedgerRole) ([]*models.WithdrawalRequest, error)
}

type withdrawalRequestRepository struct {
	db *gorm.DB
}

// NewWithdrawalRequestRepository creates a new WithdrawalRequestRepository
// instance.
func NewWithdrawalRequestRepository(db *gorm.DB) WithdrawalRequestRepository {
	return &withdrawalRequestRepository{db: db}
}

func (r *withdrawalRequestRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *withdrawalRequestRepository) GetByID(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *withdrawalRequestRepository) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *withdrawalRequestRepository) FindByOwner(ctx context.Context, owner string, page, pageSize int) ([]*models.WithdrawalRequest, int64, error) {
	var requests []*models.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).Where("owner = ?", owner)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

func (r *withdrawalRequestRepository) FindByStatus(ctx context.Context, status string) ([]*models.WithdrawalRequest, error) {
	var requests []*models.WithdrawalRequest
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *withdrawalRequestRepository) ListAll(ctx context.Context, role models.LedgerRole) ([]*models.WithdrawalRequest, error) {
	var requests []*models.WithdrawalRequest
	if err := r.db.WithContext(ctx).Where("role = ?", role).Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
