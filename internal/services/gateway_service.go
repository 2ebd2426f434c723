package services

import (
	"context"
	"encoding/hex"
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

// GatewayService drives the remote-side custody ledger: deposits into
// custody, relayed payout requests and their settlement. There is no share
// accounting here; shares live only on the home ledger.
type GatewayService struct {
	core      *ledger.GatewayLedger
	pause     *PauseSwitch
	db        *gorm.DB
	publisher *events.Publisher
	logger    *logrus.Logger
}

func NewGatewayService(core *ledger.GatewayLedger, pause *PauseSwitch, db *gorm.DB, publisher *events.Publisher, logger *logrus.Logger) *GatewayService {
	return &GatewayService{core: core, pause: pause, db: db, publisher: publisher, logger: logger}
}

// Pause arms the gateway circuit breaker. Pending payouts stay settleable.
func (s *GatewayService) Pause(ctx context.Context) {
	s.pause.Pause()
	s.logger.Warn("gateway ledger paused")
	if err := s.publisher.Emit(ctx, models.EventLedgerPaused, "", nil, struct{}{}); err != nil {
		s.logger.WithError(err).Warn("pause event emit failed")
	}
}

// Resume disarms the gateway circuit breaker.
func (s *GatewayService) Resume(ctx context.Context) {
	s.pause.Resume()
	s.logger.Info("gateway ledger resumed")
	if err := s.publisher.Emit(ctx, models.EventLedgerResumed, "", nil, struct{}{}); err != nil {
		s.logger.WithError(err).Warn("resume event emit failed")
	}
}

// Paused reports the circuit breaker state.
func (s *GatewayService) Paused() bool {
	return s.pause.IsPaused()
}

func gatewayRequestRow(req *ledger.WithdrawalRequest) *models.WithdrawalRequest {
	return &models.WithdrawalRequest{
		ID:           req.ID.Hex(),
		Role:         models.RoleGateway,
		Owner:        req.Owner.Hex(),
		Receiver:     hex.EncodeToString(req.Receiver),
		DestNetwork:  req.DestNetwork,
		DestAsset:    req.DestAsset.Hex(),
		Amount:       utils.BigIntString(req.Amount),
		LockedShares: "0",
		Status:       string(req.Status),
		Remote:       true,
	}
}

func (s *GatewayService) saveCustody(ctx context.Context, tx *gorm.DB, asset common.Address) error {
	repo := repository.NewLedgerStateRepository(tx)
	if err := repo.UpsertGatewayCustody(ctx, &models.GatewayCustody{
		Asset:   asset.Hex(),
		Balance: utils.BigIntString(s.core.CustodyOf(asset)),
	}); err != nil {
		return err
	}
	return repo.SaveVaultState(ctx, &models.VaultState{
		Role:           models.RoleGateway,
		Supply:         "0",
		Managed:        "0",
		HighWaterMark:  "0",
		DepositCounter: s.core.DepositCounter(),
	})
}

// RecordDeposit takes an asset into custody and derives the deposit id the
// relayer carries to the home ledger.
func (s *GatewayService) RecordDeposit(ctx context.Context, depositor string, asset common.Address, amount *big.Int) (*ledger.GatewayDeposit, error) {
	dep, err := s.core.RecordDeposit(ctx, depositor, asset, amount)
	if err != nil {
		metrics.DepositsRejected.WithLabelValues("gateway", rejectReason(err)).Inc()
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewDepositRepository(tx).Create(ctx, &models.Deposit{
			ID:            dep.DepositID.Hex(),
			Kind:          models.DepositKindLocal,
			Role:          models.RoleGateway,
			OriginAccount: dep.Depositor,
			Asset:         dep.Asset.Hex(),
			Amount:        utils.BigIntString(dep.NormalizedAmount),
		}); err != nil {
			return err
		}
		if err := repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleGateway, models.ReplayNamespaceDeposit, dep.DepositID.Hex()); err != nil {
			return err
		}
		return s.saveCustody(ctx, tx, asset)
	})
	if err != nil {
		s.logger.WithError(err).WithField("deposit_id", dep.DepositID.Hex()).Error("gateway deposit mirror write failed")
		return nil, err
	}
	metrics.DepositsTotal.WithLabelValues("gateway").Inc()
	if emitErr := s.publisher.Emit(ctx, models.EventDepositRecorded, dep.DepositID.Hex(),
		[]string{dep.Depositor, dep.Asset.Hex()}, dep); emitErr != nil {
		s.logger.WithError(emitErr).Warn("gateway deposit event emit failed")
	}
	return dep, nil
}

// RecordPayoutRequest books a relayed payout obligation under its home-side
// request id.
func (s *GatewayService) RecordPayoutRequest(ctx context.Context, requestID common.Hash, receiver []byte, asset common.Address, amountNormalized *big.Int) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.RecordPayoutRequest(requestID, receiver, asset, amountNormalized)
	if err != nil {
		if errors.Is(err, ledger.ErrReplay) {
			metrics.ReplayRejections.WithLabelValues(models.ReplayNamespaceRequest).Inc()
		}
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewWithdrawalRequestRepository(tx).Create(ctx, gatewayRequestRow(req)); err != nil {
			return err
		}
		return repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleGateway, models.ReplayNamespaceRequest, req.ID.Hex())
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID.Hex()).Error("payout mirror write failed")
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues("payout").Inc()
	metrics.PendingWithdrawals.Inc()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalRequested, req.ID.Hex(),
		[]string{asset.Hex()}, gatewayRequestRow(req)); emitErr != nil {
		s.logger.WithError(emitErr).Warn("payout event emit failed")
	}
	return req, nil
}

// CompletePayout debits custody and pays the receiver. Available while
// paused.
func (s *GatewayService) CompletePayout(ctx context.Context, requestID common.Hash) (*ledger.PayoutResult, error) {
	result, err := s.core.CompletePayout(ctx, requestID)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewWithdrawalRequestRepository(tx).UpdateStatus(ctx, result.Request.ID.Hex(), string(result.Request.Status)); err != nil {
			return err
		}
		return s.saveCustody(ctx, tx, result.Request.DestAsset)
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID.Hex()).Error("payout settle mirror write failed")
		return nil, err
	}
	metrics.WithdrawalsSettled.WithLabelValues("completed").Inc()
	metrics.PendingWithdrawals.Dec()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalCompleted, result.Request.ID.Hex(),
		[]string{result.Request.DestAsset.Hex()}, map[string]string{
			"request_id":    result.Request.ID.Hex(),
			"native_amount": utils.BigIntString(result.NativeAmount),
		}); emitErr != nil {
		s.logger.WithError(emitErr).Warn("payout settle event emit failed")
	}
	return result, nil
}

// CancelPayout unwinds a pending payout without touching custody. Available
// while paused.
func (s *GatewayService) CancelPayout(ctx context.Context, requestID common.Hash) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.CancelPayout(requestID)
	if err != nil {
		return nil, err
	}
	if err := repository.NewWithdrawalRequestRepository(s.db).UpdateStatus(ctx, req.ID.Hex(), string(req.Status)); err != nil {
		s.logger.WithError(err).WithField("request_id", requestID.Hex()).Error("payout cancel mirror write failed")
		return nil, err
	}
	metrics.WithdrawalsSettled.WithLabelValues("canceled").Inc()
	metrics.PendingWithdrawals.Dec()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalCanceled, req.ID.Hex(), nil, gatewayRequestRow(req)); emitErr != nil {
		s.logger.WithError(emitErr).Warn("payout cancel event emit failed")
	}
	return req, nil
}

// SetAllowedAsset configures a custody asset.
func (s *GatewayService) SetAllowedAsset(ctx context.Context, asset common.Address, decimals uint8, allowed bool) error {
	if err := s.core.SetAllowedAsset(asset, decimals, allowed); err != nil {
		return err
	}
	if err := repository.NewLedgerStateRepository(s.db).UpsertAllowedAsset(ctx, &models.AllowedAsset{
		Asset:    asset.Hex(),
		Role:     models.RoleGateway,
		Decimals: decimals,
		Allowed:  allowed,
	}); err != nil {
		s.logger.WithError(err).Error("gateway asset mirror write failed")
		return err
	}
	if emitErr := s.publisher.Emit(ctx, models.EventAssetAllowlisted, asset.Hex(), nil, map[string]any{
		"asset":    asset.Hex(),
		"decimals": decimals,
		"allowed":  allowed,
	}); emitErr != nil {
		s.logger.WithError(emitErr).Warn("gateway asset event emit failed")
	}
	return nil
}

// AllocateToVault pushes custody assets into a yield sub-vault.
func (s *GatewayService) AllocateToVault(ctx context.Context, vault common.Address, amount *big.Int) (*ledger.VaultPosition, error) {
	position, cached, err := s.core.AllocateToVault(ctx, vault, amount)
	if err != nil {
		return nil, err
	}
	if err := repository.NewExternalVaultRepository(s.db).Upsert(ctx, &models.ExternalVault{
		Vault:      vault.Hex(),
		Role:       models.RoleGateway,
		Underlying: position.Underlying.Hex(),
		Shares:     utils.BigIntString(position.Shares),
	}); err != nil {
		s.logger.WithError(err).Error("gateway vault mirror write failed")
		return nil, err
	}
	if cached {
		if emitErr := s.publisher.Emit(ctx, models.EventVaultCached, vault.Hex(), nil, map[string]string{
			"vault":      vault.Hex(),
			"underlying": position.Underlying.Hex(),
		}); emitErr != nil {
			s.logger.WithError(emitErr).Warn("gateway vault cache event emit failed")
		}
	}
	if emitErr := s.publisher.Emit(ctx, models.EventVaultAllocated, vault.Hex(), nil, position); emitErr != nil {
		s.logger.WithError(emitErr).Warn("gateway vault allocate event emit failed")
	}
	return position, nil
}

// WithdrawFromVault pulls shares back out of a sub-vault.
func (s *GatewayService) WithdrawFromVault(ctx context.Context, vault common.Address, shares *big.Int) (*big.Int, error) {
	assets, err := s.core.WithdrawFromVault(ctx, vault, shares)
	if err != nil {
		return nil, err
	}
	positions, posErr := s.core.VaultPositions(ctx)
	if posErr == nil {
		record := &models.ExternalVault{Vault: vault.Hex(), Role: models.RoleGateway, Shares: "0"}
		for i := range positions {
			if positions[i].Vault == vault {
				record.Underlying = positions[i].Underlying.Hex()
				record.Shares = utils.BigIntString(positions[i].Shares)
				break
			}
		}
		if record.Underlying != "" {
			if err := repository.NewExternalVaultRepository(s.db).Upsert(ctx, record); err != nil {
				s.logger.WithError(err).Error("gateway vault mirror write failed")
			}
		}
	}
	if emitErr := s.publisher.Emit(ctx, models.EventVaultWithdrawn, vault.Hex(), nil, map[string]string{
		"vault":  vault.Hex(),
		"shares": utils.BigIntString(shares),
		"assets": utils.BigIntString(assets),
	}); emitErr != nil {
		s.logger.WithError(emitErr).Warn("gateway vault withdraw event emit failed")
	}
	return assets, nil
}

// CustodyOf returns the normalized custody balance for one asset.
func (s *GatewayService) CustodyOf(asset common.Address) *big.Int {
	return s.core.CustodyOf(asset)
}

// Request returns the live state of one payout request.
func (s *GatewayService) Request(id common.Hash) (*ledger.WithdrawalRequest, error) {
	return s.core.Request(id)
}

// VaultPositions values every tracked sub-vault position.
func (s *GatewayService) VaultPositions(ctx context.Context) ([]ledger.VaultPosition, error) {
	return s.core.VaultPositions(ctx)
}
