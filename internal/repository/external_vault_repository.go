package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExternalVaultRepository persists tracked yield sub-vault positions.
type ExternalVaultRepository interface {
	Upsert(ctx context.Context, vault *models.ExternalVault) error
	GetByVault(ctx context.Context, vault string, role models.LedgerRole) (*models.ExternalVault, error)
	ListAll(ctx context.Context, role models.LedgerRole) ([]*models.ExternalVault, error)
}

type externalVaultRepository struct {
	db *gorm.DB
}

// NewExternalVaultRepository creates a new ExternalVaultRepository instance.
func NewExternalVaultRepository(db *gorm.DB) ExternalVaultRepository {
	return &externalVaultRepository{db: db}
}

func (r *externalVaultRepository) Upsert(ctx context.Context, vault *models.ExternalVault) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(vault).Error
}

func (r *externalVaultRepository) GetByVault(ctx context.Context, vault string, role models.LedgerRole) (*models.ExternalVault, error) {
	var record models.ExternalVault
	err := r.db.WithContext(ctx).
		First(&record, "vault = ? AND role = ?", vault, role).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *externalVaultRepository) ListAll(ctx context.Context, role models.LedgerRole) ([]*models.ExternalVault, error) {
	var records []*models.ExternalVault
	if err := r.db.WithContext(ctx).Where("role = ?", role).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
