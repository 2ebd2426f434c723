package repository

import (
	"context"
	"errors"

	"hako-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStateRepository persists the aggregate vault state, holder rows and
// the allowlist configuration.
type LedgerStateRepository interface {
	GetVaultState(ctx context.Context, role models.LedgerRole) (*models.VaultState, error)
	SaveVaultState(ctx context.Context, state *models.VaultState) error

	UpsertHolder(ctx context.Context, holder *models.Holder) error
	GetHolder(ctx context.Context, address string) (*models.Holder, error)
	ListHolders(ctx context.Context) ([]*models.Holder, error)

	UpsertAllowedAsset(ctx context.Context, asset *models.AllowedAsset) error
	ListAllowedAssets(ctx context.Context, role models.LedgerRole) ([]*models.AllowedAsset, error)

	UpsertDestination(ctx context.Context, entry *models.DestinationEntry) error
	ListDestinations(ctx context.Context) ([]*models.DestinationEntry, error)

	UpsertGatewayCustody(ctx context.Context, custody *models.GatewayCustody) error
	ListGatewayCustody(ctx context.Context) ([]*models.GatewayCustody, error)
}

type ledgerStateRepository struct {
	db *gorm.DB
}

// NewLedgerStateRepository creates a new LedgerStateRepository instance.
func NewLedgerStateRepository(db *gorm.DB) LedgerStateRepository {
	return &ledgerStateRepository{db: db}
}

// GetVaultState loads the aggregate row for one ledger role, or nil when
// that ledger has never committed state.
func (r *ledgerStateRepository) GetVaultState(ctx context.Context, role models.LedgerRole) (*models.VaultState, error) {
	var state models.VaultState
	err := r.db.WithContext(ctx).First(&state, "role = ?", role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveVaultState upserts one role's aggregate row. The caller sets Role.
func (r *ledgerStateRepository) SaveVaultState(ctx context.Context, state *models.VaultState) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(state).Error
}

func (r *ledgerStateRepository) UpsertHolder(ctx context.Context, holder *models.Holder) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(holder).Error
}

func (r *ledgerStateRepository) GetHolder(ctx context.Context, address string) (*models.Holder, error) {
	var holder models.Holder
	if err := r.db.WithContext(ctx).First(&holder, "address = ?", address).Error; err != nil {
		return nil, err
	}
	return &holder, nil
}

func (r *ledgerStateRepository) ListHolders(ctx context.Context) ([]*models.Holder, error) {
	var holders []*models.Holder
	if err := r.db.WithContext(ctx).Find(&holders).Error; err != nil {
		return nil, err
	}
	return holders, nil
}

func (r *ledgerStateRepository) UpsertAllowedAsset(ctx context.Context, asset *models.AllowedAsset) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(asset).Error
}

func (r *ledgerStateRepository) ListAllowedAssets(ctx context.Context, role models.LedgerRole) ([]*models.AllowedAsset, error) {
	var assets []*models.AllowedAsset
	if err := r.db.WithContext(ctx).Where("role = ?", role).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *ledgerStateRepository) UpsertDestination(ctx context.Context, entry *models.DestinationEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(entry).Error
}

func (r *ledgerStateRepository) ListDestinations(ctx context.Context) ([]*models.DestinationEntry, error) {
	var entries []*models.DestinationEntry
	if err := r.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerStateRepository) UpsertGatewayCustody(ctx context.Context, custody *models.GatewayCustody) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(custody).Error
}

func (r *ledgerStateRepository) ListGatewayCustody(ctx context.Context) ([]*models.GatewayCustody, error) {
	var rows []*models.GatewayCustody
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
