// Package services orchestrates the in-memory ledgers: it authorizes and
// forwards calls into the core, mirrors every committed mutation into the
// database, emits audit events and keeps the metrics surface current. The
// in-memory ledger is authoritative at runtime; the database exists for
// queries, audit and boot-time rehydration.
package services

import (
	"context"
	"errors"
	"math/big"

	"hako-backend/internal/events"
	"hako-backend/internal/ledger"
	"hako-backend/internal/metrics"
	"hako-backend/internal/models"
	"hako-backend/internal/repository"
	"hako-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VaultService drives the home ledger: deposits, share accounting, fee
// collection, allowlist administration and external vault allocation.
type VaultService struct {
	core      *ledger.Ledger
	pause     *PauseSwitch
	db        *gorm.DB
	publisher *events.Publisher
	logger    *logrus.Logger
}

func NewVaultService(core *ledger.Ledger, pause *PauseSwitch, db *gorm.DB, publisher *events.Publisher, logger *logrus.Logger) *VaultService {
	return &VaultService{core: core, pause: pause, db: db, publisher: publisher, logger: logger}
}

// Pause arms the circuit breaker. Booked requests remain settleable.
func (s *VaultService) Pause(ctx context.Context) {
	s.pause.Pause()
	s.logger.Warn("ledger paused")
	if err := s.publisher.Emit(ctx, models.EventLedgerPaused, "", nil, struct{}{}); err != nil {
		s.logger.WithError(err).Warn("pause event emit failed")
	}
}

// Resume disarms the circuit breaker.
func (s *VaultService) Resume(ctx context.Context) {
	s.pause.Resume()
	s.logger.Info("ledger resumed")
	if err := s.publisher.Emit(ctx, models.EventLedgerResumed, "", nil, struct{}{}); err != nil {
		s.logger.WithError(err).Warn("resume event emit failed")
	}
}

// Paused reports the circuit breaker state.
func (s *VaultService) Paused() bool {
	return s.pause.IsPaused()
}

// AssetDecimals returns the configured decimals of an allowlisted asset.
func (s *VaultService) AssetDecimals(asset common.Address) (uint8, error) {
	return s.core.AssetDecimals(asset)
}

// rejectReason maps a core error onto a bounded metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrPaused):
		return "paused"
	case errors.Is(err, ledger.ErrReplay):
		return "replay"
	case errors.Is(err, ledger.ErrAssetNotAllowed), errors.Is(err, ledger.ErrDestinationNotAllowed), errors.Is(err, ledger.ErrVaultNotAllowed):
		return "not_allowed"
	case errors.Is(err, ledger.ErrZeroAmount), errors.Is(err, ledger.ErrZeroAddress), errors.Is(err, ledger.ErrZeroShares):
		return "zero_value"
	default:
		return "invalid"
	}
}

// saveVaultState mirrors the aggregate totals into the home ledger's row.
func (s *VaultService) saveVaultState(ctx context.Context, tx *gorm.DB) error {
	snap := s.core.Snapshot()
	repo := repository.NewLedgerStateRepository(tx)
	return repo.SaveVaultState(ctx, &models.VaultState{
		Role:          models.RoleHome,
		Supply:        utils.BigIntString(snap.Supply),
		Managed:       utils.BigIntString(snap.Managed),
		HighWaterMark: utils.BigIntString(snap.HighWaterMark),
		OpCounter:     s.core.OpCounter(),
	})
}

// saveHolder mirrors one holder row from the live core state.
func (s *VaultService) saveHolder(ctx context.Context, tx *gorm.DB, addr common.Address) error {
	repo := repository.NewLedgerStateRepository(tx)
	return repo.UpsertHolder(ctx, &models.Holder{
		Address: addr.Hex(),
		Balance: utils.BigIntString(s.core.BalanceOf(addr)),
		Locked:  utils.BigIntString(s.core.LockedOf(addr)),
		Nonce:   s.core.NonceOf(addr),
	})
}

func (s *VaultService) updateAggregateGauges() {
	snap := s.core.Snapshot()
	supply, _ := new(big.Float).SetInt(snap.Supply).Float64()
	managed, _ := new(big.Float).SetInt(snap.Managed).Float64()
	metrics.ShareSupply.Set(supply)
	metrics.ManagedAssets.Set(managed)
}

// Deposit accepts a local deposit and mints shares to the receiver.
func (s *VaultService) Deposit(ctx context.Context, receiver, asset common.Address, amount *big.Int) (*ledger.DepositResult, error) {
	result, err := s.core.Deposit(ctx, receiver, asset, amount)
	if err != nil {
		metrics.DepositsRejected.WithLabelValues(string(models.DepositKindLocal), rejectReason(err)).Inc()
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewDepositRepository(tx).Create(ctx, &models.Deposit{
			ID:       result.DepositID.Hex(),
			Kind:     models.DepositKindLocal,
			Role:     models.RoleHome,
			Receiver: result.Receiver.Hex(),
			Asset:    result.Asset.Hex(),
			Amount:   utils.BigIntString(result.NormalizedAmount),
			Shares:   utils.BigIntString(result.SharesMinted),
		}); err != nil {
			return err
		}
		if err := repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleHome, models.ReplayNamespaceDeposit, result.DepositID.Hex()); err != nil {
			return err
		}
		if err := s.saveHolder(ctx, tx, result.Receiver); err != nil {
			return err
		}
		return s.saveVaultState(ctx, tx)
	})
	if err != nil {
		s.logger.WithError(err).WithField("deposit_id", result.DepositID.Hex()).Error("deposit mirror write failed")
		return nil, err
	}

	metrics.DepositsTotal.WithLabelValues(string(models.DepositKindLocal)).Inc()
	s.updateAggregateGauges()

	if err := s.publisher.Emit(ctx, models.EventDepositRecorded, result.DepositID.Hex(),
		[]string{result.Receiver.Hex(), result.Asset.Hex()}, result); err != nil {
		s.logger.WithError(err).Warn("deposit event emit failed")
	}
	return result, nil
}

// RecordRemoteDeposit books a relayed gateway deposit under the remote
// account's pseudo-identity.
func (s *VaultService) RecordRemoteDeposit(ctx context.Context, depositID common.Hash, originNetwork uint32, originAccount, assetID string, amountNormalized *big.Int) (*ledger.DepositResult, error) {
	result, err := s.core.RecordRemoteDeposit(depositID, originNetwork, originAccount, assetID, amountNormalized)
	if err != nil {
		if errors.Is(err, ledger.ErrReplay) {
			metrics.ReplayRejections.WithLabelValues(models.ReplayNamespaceDeposit).Inc()
		}
		metrics.DepositsRejected.WithLabelValues(string(models.DepositKindRemote), rejectReason(err)).Inc()
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewDepositRepository(tx).Create(ctx, &models.Deposit{
			ID:            result.DepositID.Hex(),
			Kind:          models.DepositKindRemote,
			Role:          models.RoleHome,
			Receiver:      result.Receiver.Hex(),
			Asset:         result.Asset.Hex(),
			OriginNetwork: result.OriginNetwork,
			OriginAccount: result.OriginAccount,
			Amount:        utils.BigIntString(result.NormalizedAmount),
			Shares:        utils.BigIntString(result.SharesMinted),
		}); err != nil {
			return err
		}
		if err := repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleHome, models.ReplayNamespaceDeposit, result.DepositID.Hex()); err != nil {
			return err
		}
		if result.NewIdentity {
			originHash, _ := s.core.LookupOrigin(result.Receiver)
			if err := repository.NewIdentityRepository(tx).Create(ctx, &models.PseudoIdentity{
				OriginHash:    originHash.Hex(),
				LocalAddress:  result.Receiver.Hex(),
				OriginNetwork: originNetwork,
				OriginAccount: originAccount,
			}); err != nil {
				return err
			}
		}
		if err := s.saveHolder(ctx, tx, result.Receiver); err != nil {
			return err
		}
		return s.saveVaultState(ctx, tx)
	})
	if err != nil {
		s.logger.WithError(err).WithField("deposit_id", depositID.Hex()).Error("remote deposit mirror write failed")
		return nil, err
	}

	metrics.DepositsTotal.WithLabelValues(string(models.DepositKindRemote)).Inc()
	s.updateAggregateGauges()

	if result.NewIdentity {
		if err := s.publisher.Emit(ctx, models.EventAccountRegistered, result.Receiver.Hex(),
			[]string{originAccount}, result); err != nil {
			s.logger.WithError(err).Warn("identity event emit failed")
		}
	}
	if err := s.publisher.Emit(ctx, models.EventDepositRecorded, result.DepositID.Hex(),
		[]string{result.Receiver.Hex(), originAccount}, result); err != nil {
		s.logger.WithError(err).Warn("deposit event emit failed")
	}
	return result, nil
}

// RegisterPseudoIdentity binds an origin account without moving assets.
func (s *VaultService) RegisterPseudoIdentity(ctx context.Context, originNetwork uint32, originAccount string) (common.Address, bool, error) {
	local, created, err := s.core.RegisterPseudoIdentity(originNetwork, originAccount)
	if err != nil {
		return common.Address{}, false, err
	}
	if !created {
		return local, false, nil
	}

	originHash, _ := s.core.LookupOrigin(local)
	if err := repository.NewIdentityRepository(s.db).Create(ctx, &models.PseudoIdentity{
		OriginHash:    originHash.Hex(),
		LocalAddress:  local.Hex(),
		OriginNetwork: originNetwork,
		OriginAccount: originAccount,
	}); err != nil {
		s.logger.WithError(err).Error("identity mirror write failed")
		return common.Address{}, false, err
	}
	if err := s.publisher.Emit(ctx, models.EventAccountRegistered, local.Hex(),
		[]string{originAccount}, map[string]any{
			"local_address":  local.Hex(),
			"origin_network": originNetwork,
			"origin_account": originAccount,
		}); err != nil {
		s.logger.WithError(err).Warn("identity event emit failed")
	}
	return local, true, nil
}

// ReportProfit folds a profit delta in and collects any performance fee.
func (s *VaultService) ReportProfit(ctx context.Context, profit *big.Int) (*ledger.ProfitReport, error) {
	report, err := s.core.ReportProfit(profit)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if report.FeeShares.Sign() > 0 {
			if err := s.saveHolder(ctx, tx, report.FeeRecipient); err != nil {
				return err
			}
		}
		return s.saveVaultState(ctx, tx)
	})
	if err != nil {
		s.logger.WithError(err).Error("profit mirror write failed")
		return nil, err
	}

	s.updateAggregateGauges()
	if report.FeeShares.Sign() > 0 {
		metrics.FeeCollections.Inc()
		if err := s.publisher.Emit(ctx, models.EventFeeCollected, report.FeeRecipient.Hex(), nil, report); err != nil {
			s.logger.WithError(err).Warn("fee event emit failed")
		}
	}
	if err := s.publisher.Emit(ctx, models.EventHighWaterMarkUpdated, "", nil, report); err != nil {
		s.logger.WithError(err).Warn("hwm event emit failed")
	}
	return report, nil
}

// ReportLoss folds a loss delta into managed assets.
func (s *VaultService) ReportLoss(ctx context.Context, loss *big.Int) error {
	if err := s.core.ReportLoss(loss); err != nil {
		return err
	}
	if err := s.saveVaultState(ctx, s.db); err != nil {
		s.logger.WithError(err).Error("loss mirror write failed")
		return err
	}
	s.updateAggregateGauges()
	if err := s.publisher.Emit(ctx, models.EventLossReported, "", nil, map[string]string{
		"loss": utils.BigIntString(loss),
	}); err != nil {
		s.logger.WithError(err).Warn("loss event emit failed")
	}
	return nil
}

// Transfer moves unlocked shares between holders.
func (s *VaultService) Transfer(ctx context.Context, from, to common.Address, shares *big.Int) error {
	if err := s.core.Transfer(from, to, shares); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.saveHolder(ctx, tx, from); err != nil {
			return err
		}
		return s.saveHolder(ctx, tx, to)
	})
	if err != nil {
		s.logger.WithError(err).Error("transfer mirror write failed")
		return err
	}
	if err := s.publisher.Emit(ctx, models.EventSharesTransferred, from.Hex(),
		[]string{to.Hex()}, map[string]string{
			"from":   from.Hex(),
			"to":     to.Hex(),
			"shares": utils.BigIntString(shares),
		}); err != nil {
		s.logger.WithError(err).Warn("transfer event emit failed")
	}
	return nil
}

// ExecuteOutboundTransfer moves managed assets to another custody location.
func (s *VaultService) ExecuteOutboundTransfer(ctx context.Context, asset common.Address, destNetwork uint32, receiver []byte, amount *big.Int) (*ledger.OutboundTransfer, error) {
	op, err := s.core.ExecuteOutboundTransfer(ctx, asset, destNetwork, receiver, amount)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleHome, models.ReplayNamespaceOperation, op.OperationID.Hex()); err != nil {
			return err
		}
		return s.saveVaultState(ctx, tx)
	})
	if err != nil {
		s.logger.WithError(err).Error("outbound transfer mirror write failed")
		return nil, err
	}
	if err := s.publisher.Emit(ctx, models.EventOutboundTransfer, op.OperationID.Hex(),
		[]string{asset.Hex()}, op); err != nil {
		s.logger.WithError(err).Warn("outbound transfer event emit failed")
	}
	return op, nil
}

// SetAllowedAsset configures a deposit asset.
func (s *VaultService) SetAllowedAsset(ctx context.Context, asset common.Address, decimals uint8, allowed bool) error {
	if err := s.core.SetAllowedAsset(asset, decimals, allowed); err != nil {
		return err
	}
	if err := repository.NewLedgerStateRepository(s.db).UpsertAllowedAsset(ctx, &models.AllowedAsset{
		Asset:    asset.Hex(),
		Role:     models.RoleHome,
		Decimals: decimals,
		Allowed:  allowed,
	}); err != nil {
		s.logger.WithError(err).Error("asset allowlist mirror write failed")
		return err
	}
	if err := s.publisher.Emit(ctx, models.EventAssetAllowlisted, asset.Hex(), nil, map[string]any{
		"asset":    asset.Hex(),
		"decimals": decimals,
		"allowed":  allowed,
	}); err != nil {
		s.logger.WithError(err).Warn("asset allowlist event emit failed")
	}
	return nil
}

// SetDestinationNetwork configures a destination network allowlist entry.
func (s *VaultService) SetDestinationNetwork(ctx context.Context, network uint32, allowed bool) error {
	if err := s.core.SetDestinationNetwork(network, allowed); err != nil {
		return err
	}
	if err := repository.NewLedgerStateRepository(s.db).UpsertDestination(ctx, &models.DestinationEntry{
		NetworkID: network,
		Allowed:   allowed,
	}); err != nil {
		s.logger.WithError(err).Error("destination mirror write failed")
		return err
	}
	return s.emitDestination(ctx, network, "", allowed)
}

// SetDestinationAsset configures a per-asset destination allowlist entry.
func (s *VaultService) SetDestinationAsset(ctx context.Context, network uint32, asset common.Address, allowed bool) error {
	if err := s.core.SetDestinationAsset(network, asset, allowed); err != nil {
		return err
	}
	if err := repository.NewLedgerStateRepository(s.db).UpsertDestination(ctx, &models.DestinationEntry{
		NetworkID: network,
		Asset:     asset.Hex(),
		Allowed:   allowed,
	}); err != nil {
		s.logger.WithError(err).Error("destination mirror write failed")
		return err
	}
	return s.emitDestination(ctx, network, asset.Hex(), allowed)
}

func (s *VaultService) emitDestination(ctx context.Context, network uint32, asset string, allowed bool) error {
	if err := s.publisher.Emit(ctx, models.EventDestinationAllowlisted, asset, nil, map[string]any{
		"network": network,
		"asset":   asset,
		"allowed": allowed,
	}); err != nil {
		s.logger.WithError(err).Warn("destination event emit failed")
	}
	return nil
}

// SetFeeConfig updates the performance fee rate and recipient.
func (s *VaultService) SetFeeConfig(ctx context.Context, rateBps uint32, recipient common.Address) error {
	if err := s.core.SetFeeConfig(rateBps, recipient); err != nil {
		return err
	}
	if err := s.publisher.Emit(ctx, models.EventFeeConfigured, recipient.Hex(), nil, map[string]any{
		"rate_bps":  rateBps,
		"recipient": recipient.Hex(),
	}); err != nil {
		s.logger.WithError(err).Warn("fee config event emit failed")
	}
	return nil
}

// ResetHighWaterMark clears the fee mark. Rarely legitimate; logged loudly.
func (s *VaultService) ResetHighWaterMark(ctx context.Context) error {
	if err := s.core.ResetHighWaterMark(); err != nil {
		return err
	}
	s.logger.Warn("high-water-mark administratively reset, next profit report re-bootstraps the mark")
	if err := s.saveVaultState(ctx, s.db); err != nil {
		return err
	}
	if err := s.publisher.Emit(ctx, models.EventHighWaterMarkReset, "", nil, struct{}{}); err != nil {
		s.logger.WithError(err).Warn("hwm reset event emit failed")
	}
	return nil
}

// AllocateToVault pushes managed assets into a yield sub-vault.
func (s *VaultService) AllocateToVault(ctx context.Context, vault common.Address, amount *big.Int) (*ledger.VaultPosition, error) {
	position, cached, err := s.core.AllocateToVault(ctx, vault, amount)
	if err != nil {
		return nil, err
	}
	if err := s.saveVaultPosition(ctx, vault, position); err != nil {
		return nil, err
	}
	if cached {
		if err := s.publisher.Emit(ctx, models.EventVaultCached, vault.Hex(), nil, map[string]string{
			"vault":      vault.Hex(),
			"underlying": position.Underlying.Hex(),
		}); err != nil {
			s.logger.WithError(err).Warn("vault cache event emit failed")
		}
	}
	if err := s.publisher.Emit(ctx, models.EventVaultAllocated, vault.Hex(), nil, position); err != nil {
		s.logger.WithError(err).Warn("vault allocate event emit failed")
	}
	return position, nil
}

// WithdrawFromVault pulls a share count back out of a sub-vault.
func (s *VaultService) WithdrawFromVault(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	assets, err := s.core.WithdrawFromVault(ctx, vault, shares)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorVaultRecord(ctx, vault); err != nil {
		return nil, err
	}
	if err := s.publisher.Emit(ctx, models.EventVaultWithdrawn, vault.Hex(), nil, map[string]string{
		"vault":  vault.Hex(),
		"shares": utils.BigIntString(shares),
		"assets": utils.BigIntString(assets),
	}); err != nil {
		s.logger.WithError(err).Warn("vault withdraw event emit failed")
	}
	return assets, nil
}

// RedeemVault closes a sub-vault position entirely.
func (s *VaultService) RedeemVault(ctx context.Context, vault common.Address) (*big.Int, error) {
	assets, err := s.core.RedeemVault(ctx, vault)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorVaultRecord(ctx, vault); err != nil {
		return nil, err
	}
	if err := s.publisher.Emit(ctx, models.EventVaultRedeemed, vault.Hex(), nil, map[string]string{
		"vault":  vault.Hex(),
		"assets": utils.BigIntString(assets),
	}); err != nil {
		s.logger.WithError(err).Warn("vault redeem event emit failed")
	}
	return assets, nil
}

func (s *VaultService) saveVaultPosition(ctx context.Context, vault common.Address, position *ledger.VaultPosition) error {
	err := repository.NewExternalVaultRepository(s.db).Upsert(ctx, &models.ExternalVault{
		Vault:      vault.Hex(),
		Role:       models.RoleHome,
		Underlying: position.Underlying.Hex(),
		Shares:     utils.BigIntString(position.Shares),
	})
	if err != nil {
		s.logger.WithError(err).Error("external vault mirror write failed")
	}
	return err
}

// mirrorVaultRecord re-reads live position state after a withdrawal, where
// the core result carries only the returned asset amount.
func (s *VaultService) mirrorVaultRecord(ctx context.Context, vault common.Address) error {
	positions, err := s.core.VaultPositions(ctx)
	if err != nil {
		return err
	}
	record := &models.ExternalVault{Vault: vault.Hex(), Role: models.RoleHome, Shares: "0"}
	for i := range positions {
		if positions[i].Vault == vault {
			record.Underlying = positions[i].Underlying.Hex()
			record.Shares = utils.BigIntString(positions[i].Shares)
			break
		}
	}
	if record.Underlying == "" {
		// Position fully closed and dropped from valuation; keep the last
		// persisted underlying.
		existing, getErr := repository.NewExternalVaultRepository(s.db).GetByVault(ctx, vault.Hex(), models.RoleHome)
		if getErr == nil && existing != nil {
			record.Underlying = existing.Underlying
		}
	}
	if err := repository.NewExternalVaultRepository(s.db).Upsert(ctx, record); err != nil {
		s.logger.WithError(err).Error("external vault mirror write failed")
		return err
	}
	return nil
}

// VaultPositions values every tracked sub-vault position.
func (s *VaultService) VaultPositions(ctx context.Context) ([]ledger.VaultPosition, error) {
	return s.core.VaultPositions(ctx)
}

// Snapshot returns aggregate ledger state.
func (s *VaultService) Snapshot() ledger.Snapshot {
	return s.core.Snapshot()
}

// HolderInfo returns one holder's live balances.
func (s *VaultService) HolderInfo(addr common.Address) (balance, locked *big.Int, nonce uint64) {
	return s.core.BalanceOf(addr), s.core.LockedOf(addr), s.core.NonceOf(addr)
}

// Deposits pages through the persisted deposit mirror for one receiver.
func (s *VaultService) Deposits(ctx context.Context, receiver string, page, pageSize int) ([]*models.Deposit, int64, error) {
	return repository.NewDepositRepository(s.db).FindByReceiver(ctx, receiver, page, pageSize)
}

// LookupOrigin resolves a pseudo-identity back to its origin hash.
func (s *VaultService) LookupOrigin(local common.Address) (common.Hash, bool) {
	return s.core.LookupOrigin(local)
}
