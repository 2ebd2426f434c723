package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityRepository persists pseudo-identity registrations.
type IdentityRepository interface {
	// Create is idempotent: re-registering an existing origin hash is a
	// no-op, mirroring the in-memory first-writer-wins rule.
	Create(ctx context.Context, identity *models.PseudoIdentity) error
	GetByOriginHash(ctx context.Context, originHash string) (*models.PseudoIdentity, error)
	GetByLocalAddress(ctx context.Context, local string) (*models.PseudoIdentity, error)
	ListAll(ctx context.Context) ([]*models.PseudoIdentity, error)
}

type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new IdentityRepository instance.
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *models.PseudoIdentity) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(identity).Error
}

func (r *identityRepository) GetByOriginHash(ctx context.Context, originHash string) (*models.PseudoIdentity, error) {
	var identity models.PseudoIdentity
	if err := r.db.WithContext(ctx).First(&identity, "origin_hash = ?", originHash).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) GetByLocalAddress(ctx context.Context, local string) (*models.PseudoIdentity, error) {
	var identity models.PseudoIdentity
	if err := r.db.WithContext(ctx).First(&identity, "local_address = ?", local).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) ListAll(ctx context.Context) ([]*models.PseudoIdentity, error) {
	var identities []*models.PseudoIdentity
	if err := r.db.WithContext(ctx).Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}
