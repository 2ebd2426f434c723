package services

import (
	"context"
	"encoding/hex"
	"fmt"

	"hako-backend/internal/ledger"
	"hako-backend/internal/models"
	"hako-backend/internal/repository"
	"hako-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RestoreService rebuilds an empty in-memory ledger from the persisted
// mirror on boot. It must run before the pause switch is armed and before
// the router starts serving.
type RestoreService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewRestoreService(db *gorm.DB, logger *logrus.Logger) *RestoreService {
	return &RestoreService{db: db, logger: logger}
}

func restoredRequest(row *models.WithdrawalRequest) (*ledger.WithdrawalRequest, error) {
	receiver, err := hex.DecodeString(row.Receiver)
	if err != nil {
		return nil, fmt.Errorf("request %s: bad receiver payload: %w", row.ID, err)
	}
	amount, err := utils.ParseBigInt(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", row.ID, err)
	}
	locked, err := utils.ParseBigInt(row.LockedShares)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", row.ID, err)
	}
	return &ledger.WithdrawalRequest{
		ID:           common.HexToHash(row.ID),
		Owner:        common.HexToAddress(row.Owner),
		Receiver:     receiver,
		DestNetwork:  row.DestNetwork,
		DestAsset:    common.HexToAddress(row.DestAsset),
		Amount:       amount,
		LockedShares: locked,
		Status:       ledger.RequestStatus(row.Status),
	}, nil
}

// RestoreHomeLedger replays the persisted mirror into an empty home ledger.
func (s *RestoreService) RestoreHomeLedger(ctx context.Context, core *ledger.Ledger) error {
	stateRepo := repository.NewLedgerStateRepository(s.db)

	state, err := stateRepo.GetVaultState(ctx, models.RoleHome)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}
	if state != nil {
		supply, err := utils.ParseBigInt(state.Supply)
		if err != nil {
			return err
		}
		managed, err := utils.ParseBigInt(state.Managed)
		if err != nil {
			return err
		}
		hwm, err := utils.ParseBigInt(state.HighWaterMark)
		if err != nil {
			return err
		}
		core.RestoreTotals(supply, managed, hwm, state.OpCounter)
	}

	assets, err := stateRepo.ListAllowedAssets(ctx, models.RoleHome)
	if err != nil {
		return fmt.Errorf("load allowed assets: %w", err)
	}
	for _, a := range assets {
		if err := core.SetAllowedAsset(common.HexToAddress(a.Asset), a.Decimals, a.Allowed); err != nil {
			return fmt.Errorf("restore asset %s: %w", a.Asset, err)
		}
	}

	destinations, err := stateRepo.ListDestinations(ctx)
	if err != nil {
		return fmt.Errorf("load destinations: %w", err)
	}
	for _, d := range destinations {
		if d.Asset != "" {
			continue
		}
		if err := core.SetDestinationNetwork(d.NetworkID, d.Allowed); err != nil {
			return fmt.Errorf("restore destination network %d: %w", d.NetworkID, err)
		}
	}
	for _, d := range destinations {
		if d.Asset == "" {
			continue
		}
		err := core.SetDestinationAsset(d.NetworkID, common.HexToAddress(d.Asset), d.Allowed)
		if err != nil {
			// An asset row under a now-disallowed network is inert; it comes
			// back if the network is re-allowed and the asset re-set.
			s.logger.WithField("network", d.NetworkID).WithField("asset", d.Asset).
				Warn("skipping destination asset under disallowed network")
		}
	}

	holders, err := stateRepo.ListHolders(ctx)
	if err != nil {
		return fmt.Errorf("load holders: %w", err)
	}
	for _, h := range holders {
		balance, err := utils.ParseBigInt(h.Balance)
		if err != nil {
			return fmt.Errorf("holder %s: %w", h.Address, err)
		}
		locked, err := utils.ParseBigInt(h.Locked)
		if err != nil {
			return fmt.Errorf("holder %s: %w", h.Address, err)
		}
		core.RestoreHolder(common.HexToAddress(h.Address), balance, locked, h.Nonce)
	}

	identities, err := repository.NewIdentityRepository(s.db).ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}
	for _, id := range identities {
		core.RestoreIdentity(common.HexToHash(id.OriginHash), common.HexToAddress(id.LocalAddress))
	}

	requests, err := repository.NewWithdrawalRequestRepository(s.db).ListAll(ctx, models.RoleHome)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	for _, row := range requests {
		req, err := restoredRequest(row)
		if err != nil {
			return err
		}
		core.RestoreRequest(req)
	}

	replayRepo := repository.NewReplayKeyRepository(s.db)
	depositIDs, err := replayRepo.ListByNamespace(ctx, models.RoleHome, models.ReplayNamespaceDeposit)
	if err != nil {
		return fmt.Errorf("load deposit replay keys: %w", err)
	}
	for _, id := range depositIDs {
		core.RestoreDepositID(common.HexToHash(id))
	}
	requestIDs, err := replayRepo.ListByNamespace(ctx, models.RoleHome, models.ReplayNamespaceRequest)
	if err != nil {
		return fmt.Errorf("load request replay keys: %w", err)
	}
	for _, id := range requestIDs {
		core.RestoreRequestID(common.HexToHash(id))
	}
	operationIDs, err := replayRepo.ListByNamespace(ctx, models.RoleHome, models.ReplayNamespaceOperation)
	if err != nil {
		return fmt.Errorf("load operation replay keys: %w", err)
	}
	for _, id := range operationIDs {
		core.RestoreOperationID(common.HexToHash(id))
	}

	vaults, err := repository.NewExternalVaultRepository(s.db).ListAll(ctx, models.RoleHome)
	if err != nil {
		return fmt.Errorf("load external vaults: %w", err)
	}
	for _, v := range vaults {
		shares, err := utils.ParseBigInt(v.Shares)
		if err != nil {
			return fmt.Errorf("external vault %s: %w", v.Vault, err)
		}
		core.RestoreVaultPosition(common.HexToAddress(v.Vault), common.HexToAddress(v.Underlying), shares)
	}

	s.logger.WithFields(logrus.Fields{
		"holders":    len(holders),
		"requests":   len(requests),
		"identities": len(identities),
	}).Info("home ledger state restored")
	return nil
}

// RestoreGatewayLedger replays the persisted mirror into an empty gateway
// ledger.
func (s *RestoreService) RestoreGatewayLedger(ctx context.Context, core *ledger.GatewayLedger) error {
	stateRepo := repository.NewLedgerStateRepository(s.db)

	state, err := stateRepo.GetVaultState(ctx, models.RoleGateway)
	if err != nil {
		return fmt.Errorf("load gateway state: %w", err)
	}
	if state != nil {
		core.RestoreCounter(state.DepositCounter)
	}

	assets, err := stateRepo.ListAllowedAssets(ctx, models.RoleGateway)
	if err != nil {
		return fmt.Errorf("load gateway assets: %w", err)
	}
	for _, a := range assets {
		if err := core.SetAllowedAsset(common.HexToAddress(a.Asset), a.Decimals, a.Allowed); err != nil {
			return fmt.Errorf("restore gateway asset %s: %w", a.Asset, err)
		}
	}

	custody, err := stateRepo.ListGatewayCustody(ctx)
	if err != nil {
		return fmt.Errorf("load custody: %w", err)
	}
	for _, c := range custody {
		balance, err := utils.ParseBigInt(c.Balance)
		if err != nil {
			return fmt.Errorf("custody %s: %w", c.Asset, err)
		}
		core.RestoreCustody(common.HexToAddress(c.Asset), balance)
	}

	requests, err := repository.NewWithdrawalRequestRepository(s.db).ListAll(ctx, models.RoleGateway)
	if err != nil {
		return fmt.Errorf("load payout requests: %w", err)
	}
	for _, row := range requests {
		req, err := restoredRequest(row)
		if err != nil {
			return err
		}
		core.RestoreRequest(req)
	}

	replayRepo := repository.NewReplayKeyRepository(s.db)
	depositIDs, err := replayRepo.ListByNamespace(ctx, models.RoleGateway, models.ReplayNamespaceDeposit)
	if err != nil {
		return fmt.Errorf("load deposit replay keys: %w", err)
	}
	for _, id := range depositIDs {
		core.RestoreDepositID(common.HexToHash(id))
	}
	requestIDs, err := replayRepo.ListByNamespace(ctx, models.RoleGateway, models.ReplayNamespaceRequest)
	if err != nil {
		return fmt.Errorf("load request replay keys: %w", err)
	}
	for _, id := range requestIDs {
		core.RestoreRequestID(common.HexToHash(id))
	}

	vaults, err := repository.NewExternalVaultRepository(s.db).ListAll(ctx, models.RoleGateway)
	if err != nil {
		return fmt.Errorf("load gateway vaults: %w", err)
	}
	for _, v := range vaults {
		shares, err := utils.ParseBigInt(v.Shares)
		if err != nil {
			return fmt.Errorf("gateway vault %s: %w", v.Vault, err)
		}
		core.RestoreVaultPosition(common.HexToAddress(v.Vault), common.HexToAddress(v.Underlying), shares)
	}

	s.logger.WithFields(logrus.Fields{
		"custody_assets": len(custody),
		"requests":       len(requests),
	}).Info("gateway ledger state restored")
	return nil
}
