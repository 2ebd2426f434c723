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

// WithdrawalService drives the withdrawal request lifecycle on the home
// ledger: booking by amount, by shares or on behalf of a remote account, and
// settlement or cancellation of pending requests.
type WithdrawalService struct {
	core      *ledger.Ledger
	vault     *VaultService
	db        *gorm.DB
	publisher *events.Publisher
	logger    *logrus.Logger
}

func NewWithdrawalService(core *ledger.Ledger, vault *VaultService, db *gorm.DB, publisher *events.Publisher, logger *logrus.Logger) *WithdrawalService {
	return &WithdrawalService{core: core, vault: vault, db: db, publisher: publisher, logger: logger}
}

func requestRow(req *ledger.WithdrawalRequest, remote bool) *models.WithdrawalRequest {
	return &models.WithdrawalRequest{
		ID:           req.ID.Hex(),
		Role:         models.RoleHome,
		Owner:        req.Owner.Hex(),
		Receiver:     hex.EncodeToString(req.Receiver),
		DestNetwork:  req.DestNetwork,
		DestAsset:    req.DestAsset.Hex(),
		Amount:       utils.BigIntString(req.Amount),
		LockedShares: utils.BigIntString(req.LockedShares),
		Status:       string(req.Status),
		Remote:       remote,
	}
}

// persistBooked mirrors a freshly booked request plus the owner's updated
// locked balance.
func (s *WithdrawalService) persistBooked(ctx context.Context, req *ledger.WithdrawalRequest, remote bool) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewWithdrawalRequestRepository(tx).Create(ctx, requestRow(req, remote)); err != nil {
			return err
		}
		if remote {
			if err := repository.NewReplayKeyRepository(tx).Create(ctx, models.RoleHome, models.ReplayNamespaceRequest, req.ID.Hex()); err != nil {
				return err
			}
		}
		return s.vault.saveHolder(ctx, tx, req.Owner)
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", req.ID.Hex()).Error("request mirror write failed")
		return err
	}
	metrics.PendingWithdrawals.Inc()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalRequested, req.ID.Hex(),
		[]string{req.Owner.Hex(), req.DestAsset.Hex()}, requestRow(req, remote)); emitErr != nil {
		s.logger.WithError(emitErr).Warn("request event emit failed")
	}
	return nil
}

// RequestWithdrawal books a request for a normalized asset amount.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.RequestWithdrawal(owner, receiver, destNetwork, destAsset, amount, maxShares)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues("amount").Inc()
	if err := s.persistBooked(ctx, req, false); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestRedeem books a request for an exact share count.
func (s *WithdrawalService) RequestRedeem(ctx context.Context, owner common.Address, receiver []byte, destNetwork uint32, destAsset common.Address, shares, minAmount *big.Int) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.RequestRedeem(owner, receiver, destNetwork, destAsset, shares, minAmount)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues("shares").Inc()
	if err := s.persistBooked(ctx, req, false); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestWithdrawalFor books a request on the owner's behalf under their
// withdrawal nonce.
func (s *WithdrawalService) RequestWithdrawalFor(ctx context.Context, owner common.Address, nonce uint64, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.RequestWithdrawalFor(owner, nonce, receiver, destNetwork, destAsset, amount, maxShares)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues("delegated").Inc()
	if err := s.persistBooked(ctx, req, false); err != nil {
		return nil, err
	}
	return req, nil
}

// RecordRemoteRequest books a relayed request under its origin-side id.
func (s *WithdrawalService) RecordRemoteRequest(ctx context.Context, requestID common.Hash, originNetwork uint32, originAccount string, receiver []byte, destNetwork uint32, destAsset common.Address, amount, maxShares *big.Int) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.RecordRemoteRequest(requestID, originNetwork, originAccount, receiver, destNetwork, destAsset, amount, maxShares)
	if err != nil {
		if errors.Is(err, ledger.ErrReplay) {
			metrics.ReplayRejections.WithLabelValues(models.ReplayNamespaceRequest).Inc()
		}
		return nil, err
	}
	metrics.WithdrawalRequestsTotal.WithLabelValues("remote").Inc()
	if err := s.persistBooked(ctx, req, true); err != nil {
		return nil, err
	}
	return req, nil
}

// CompleteRequest settles a pending request: locked shares burn and managed
// assets drop by the booked amount. Available while paused.
func (s *WithdrawalService) CompleteRequest(ctx context.Context, id common.Hash) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.CompleteRequest(id)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewWithdrawalRequestRepository(tx).UpdateStatus(ctx, req.ID.Hex(), string(req.Status)); err != nil {
			return err
		}
		if err := s.vault.saveHolder(ctx, tx, req.Owner); err != nil {
			return err
		}
		return s.vault.saveVaultState(ctx, tx)
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", id.Hex()).Error("request settle mirror write failed")
		return nil, err
	}
	metrics.WithdrawalsSettled.WithLabelValues("completed").Inc()
	metrics.PendingWithdrawals.Dec()
	s.vault.updateAggregateGauges()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalCompleted, req.ID.Hex(),
		[]string{req.Owner.Hex()}, requestRow(req, false)); emitErr != nil {
		s.logger.WithError(emitErr).Warn("request settle event emit failed")
	}
	return req, nil
}

// CancelRequest unwinds a pending request, restoring the locked shares.
// Available while paused.
func (s *WithdrawalService) CancelRequest(ctx context.Context, id common.Hash) (*ledger.WithdrawalRequest, error) {
	req, err := s.core.CancelRequest(id)
	if err != nil {
		return nil, err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewWithdrawalRequestRepository(tx).UpdateStatus(ctx, req.ID.Hex(), string(req.Status)); err != nil {
			return err
		}
		return s.vault.saveHolder(ctx, tx, req.Owner)
	})
	if err != nil {
		s.logger.WithError(err).WithField("request_id", id.Hex()).Error("request cancel mirror write failed")
		return nil, err
	}
	metrics.WithdrawalsSettled.WithLabelValues("canceled").Inc()
	metrics.PendingWithdrawals.Dec()
	if emitErr := s.publisher.Emit(ctx, models.EventWithdrawalCanceled, req.ID.Hex(),
		[]string{req.Owner.Hex()}, requestRow(req, false)); emitErr != nil {
		s.logger.WithError(emitErr).Warn("request cancel event emit failed")
	}
	return req, nil
}

// Request returns the live state of one request.
func (s *WithdrawalService) Request(id common.Hash) (*ledger.WithdrawalRequest, error) {
	return s.core.Request(id)
}

// RequestsByOwner pages through the persisted request mirror.
func (s *WithdrawalService) RequestsByOwner(ctx context.Context, owner string, page, pageSize int) ([]*models.WithdrawalRequest, int64, error) {
	return repository.NewWithdrawalRequestRepository(s.db).FindByOwner(ctx, owner, page, pageSize)
}

// PendingRequests lists every pending request from the mirror.
func (s *WithdrawalService) PendingRequests(ctx context.Context) ([]*models.WithdrawalRequest, error) {
	return repository.NewWithdrawalRequestRepository(s.db).FindByStatus(ctx, string(ledger.RequestStatusPending))
}
