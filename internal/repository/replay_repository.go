package repository

import (
	"context"

	"hako-backend/internal/models"

	"gorm.io/gorm"
)

// ReplayKeyRepository persists consumed one-shot identifiers so a restarted
// service keeps rejecting replays. Keys are scoped per ledger role; the same
// hash may legitimately exist on both sides of a relayed transfer.
type ReplayKeyRepository interface {
	Create(ctx context.Context, role models.LedgerRole, namespace, key string) error
	Exists(ctx context.Context, role models.LedgerRole, namespace, key string) (bool, error)
	ListByNamespace(ctx context.Context, role models.LedgerRole, namespace string) ([]string, error)
}

type replayKeyRepository struct {
	db *gorm.DB
}

// NewReplayKeyRepository creates a new ReplayKeyRepository instance.
func NewReplayKeyRepository(db *gorm.DB) ReplayKeyRepository {
	return &replayKeyRepository{db: db}
}

func (r *replayKeyRepository) Create(ctx context.Context, role models.LedgerRole, namespace, key string) error {
	return r.db.WithContext(ctx).Create(&models.ReplayKey{Role: role, Namespace: namespace, Key: key}).Error
}

func (r *replayKeyRepository) Exists(ctx context.Context, role models.LedgerRole, namespace, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReplayKey{}).
		Where("role = ? AND namespace = ? AND key = ?", role, namespace, key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *replayKeyRepository) ListByNamespace(ctx context.Context, role models.LedgerRole, namespace string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&models.ReplayKey{}).
		Where("role = ? AND namespace = ?", role, namespace).
		Pluck("key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
