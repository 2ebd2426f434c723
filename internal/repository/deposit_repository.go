package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
)

// DepositRepository persists committed deposits.
type DepositRepository interface {
	Create(ctx context.Context, deposit *models.Deposit) error
	GetByID(ctx context.Context, id string) (*models.Deposit, error)
	FindByReceiver(ctx context.Context, receiver string, page, pageSize int) ([]*models.Deposit, int64, error)
}

type depositRepository struct {
	db *gorm.DB
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(db *gorm.DB) DepositRepository {
	return &depositRepository{db: db}
}

func (r *depositRepository) Create(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

func (r *depositRepository) GetByID(ctx context.Context, id string) (*models.Deposit, error) {
	var deposit models.Deposit
	if err := r.db.WithContext(ctx).First(&deposit, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &deposit, nil
}

func (r *depositRepository) FindByReceiver(ctx context.Context, receiver string, page, pageSize int) ([]*models.Deposit, int64, error) {
	var deposits []*models.Deposit
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Deposit{}).Where("receiver = ?", receiver)
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
		Find(&deposits).Error
	if err != nil {
		return nil, 0, err
	}
	return deposits, total, nil
}
