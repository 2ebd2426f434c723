package handlers

import (
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"hako-backend/internal/services"
	"hako-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// VaultHandler serves the home ledger: deposits, share accounting, fee and
// allowlist administration, and external vault allocation.
type VaultHandler struct {
	vault  *services.VaultService
	logger *logrus.Logger
}

func NewVaultHandler(vault *services.VaultService, logger *logrus.Logger) *VaultHandler {
	return &VaultHandler{vault: vault, logger: logger}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("invalid address: " + s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 64 {
		return common.Hash{}, errors.New("invalid 32-byte id: " + s)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return common.Hash{}, errors.New("invalid 32-byte id: " + s)
	}
	return common.HexToHash(s), nil
}

func parseReceiverBytes(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(raw) == 0 {
		return nil, errors.New("invalid receiver payload")
	}
	return raw, nil
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

type depositRequest struct {
	Receiver string `json:"receiver" binding:"required"`
	Asset    string `json:"asset" binding:"required"`
	// Amount is an integer string in the asset's native precision.
	Amount string `json:"amount"`
	// AmountDecimal is a human decimal string, converted using the asset's
	// configured precision. Exactly one of the two must be set.
	AmountDecimal string `json:"amount_decimal"`
}

// Deposit handles POST /api/v1/deposits.
func (h *VaultHandler) Deposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	receiver, err := parseAddress(req.Receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}

	var amount *big.Int
	switch {
	case req.Amount != "" && req.AmountDecimal != "":
		respondError(c, errors.New("amount and amount_decimal are mutually exclusive"))
		return
	case req.Amount != "":
		amount, err = utils.ParseBigInt(req.Amount)
	case req.AmountDecimal != "":
		var decimals uint8
		decimals, err = h.vault.AssetDecimals(asset)
		if err == nil {
			amount, err = utils.ParseAmount(req.AmountDecimal, decimals)
		}
	default:
		err = errors.New("amount is required")
	}
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.vault.Deposit(c.Request.Context(), receiver, asset, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"deposit_id":      result.DepositID.Hex(),
		"receiver":        result.Receiver.Hex(),
		"shares_minted":   utils.BigIntString(result.SharesMinted),
		"amount":          utils.BigIntString(result.NormalizedAmount),
		"price_per_share": utils.BigIntString(result.PricePerShare),
	})
}

type remoteDepositRequest struct {
	DepositID     string `json:"deposit_id" binding:"required"`
	OriginNetwork uint32 `json:"origin_network" binding:"required"`
	OriginAccount string `json:"origin_account" binding:"required"`
	AssetID       string `json:"asset_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"` // normalized
}

// RecordRemoteDeposit handles POST /api/v1/relay/deposits.
func (h *VaultHandler) RecordRemoteDeposit(c *gin.Context) {
	var req remoteDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	depositID, err := parseHash(req.DepositID)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.vault.RecordRemoteDeposit(c.Request.Context(), depositID, req.OriginNetwork, req.OriginAccount, req.AssetID, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"deposit_id":    result.DepositID.Hex(),
		"receiver":      result.Receiver.Hex(),
		"shares_minted": utils.BigIntString(result.SharesMinted),
		"new_identity":  result.NewIdentity,
	})
}

type registerIdentityRequest struct {
	OriginNetwork uint32 `json:"origin_network" binding:"required"`
	OriginAccount string `json:"origin_account" binding:"required"`
}

// RegisterIdentity handles POST /api/v1/relay/identities.
func (h *VaultHandler) RegisterIdentity(c *gin.Context) {
	var req registerIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	local, created, err := h.vault.RegisterPseudoIdentity(c.Request.Context(), req.OriginNetwork, req.OriginAccount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"local_address": local.Hex(),
		"created":       created,
	})
}

// GetSnapshot handles GET /api/v1/vault.
func (h *VaultHandler) GetSnapshot(c *gin.Context) {
	snap := h.vault.Snapshot()
	respondOK(c, gin.H{
		"supply":          utils.BigIntString(snap.Supply),
		"managed":         utils.BigIntString(snap.Managed),
		"price_per_share": utils.BigIntString(snap.PricePerShare),
		"high_water_mark": utils.BigIntString(snap.HighWaterMark),
		"fee_rate_bps":    snap.FeeRateBps,
		"fee_recipient":   snap.FeeRecipient.Hex(),
		"paused":          h.vault.Paused(),
	})
}

// GetHolder handles GET /api/v1/holders/:address.
func (h *VaultHandler) GetHolder(c *gin.Context) {
	addr, err := parseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	balance, locked, nonce := h.vault.HolderInfo(addr)
	resp := gin.H{
		"address": addr.Hex(),
		"balance": utils.BigIntString(balance),
		"locked":  utils.BigIntString(locked),
		"nonce":   nonce,
	}
	if originHash, ok := h.vault.LookupOrigin(addr); ok {
		resp["origin_hash"] = originHash.Hex()
	}
	respondOK(c, resp)
}

// GetDeposits handles GET /api/v1/deposits.
func (h *VaultHandler) GetDeposits(c *gin.Context) {
	receiver := c.Query("receiver")
	if receiver == "" {
		respondError(c, errors.New("receiver query parameter is required"))
		return
	}
	page, pageSize := pageParams(c)
	deposits, total, err := h.vault.Deposits(c.Request.Context(), receiver, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"deposits": deposits,
		"total":    total,
		"page":     page,
	})
}

type transferRequest struct {
	To     string `json:"to" binding:"required"`
	Shares string `json:"shares" binding:"required"`
}

// Transfer handles POST /api/v1/transfers. The sender is the authenticated
// caller.
func (h *VaultHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	from, err := parseAddress(c.GetString("caller_address"))
	if err != nil {
		respondError(c, errors.New("caller has no ledger address"))
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		respondError(c, err)
		return
	}
	shares, err := utils.ParseBigInt(req.Shares)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.Transfer(c.Request.Context(), from, to, shares); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"from": from.Hex(), "to": to.Hex(), "shares": req.Shares})
}

type profitRequest struct {
	Profit string `json:"profit" binding:"required"` // normalized
}

// ReportProfit handles POST /api/v1/admin/profit.
func (h *VaultHandler) ReportProfit(c *gin.Context) {
	var req profitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	profit, err := utils.ParseBigInt(req.Profit)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.vault.ReportProfit(c.Request.Context(), profit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"fee_shares":      utils.BigIntString(report.FeeShares),
		"fee_amount":      utils.BigIntString(report.FeeAmount),
		"fee_recipient":   report.FeeRecipient.Hex(),
		"high_water_mark": utils.BigIntString(report.HighWaterMark),
		"price_per_share": utils.BigIntString(report.PricePerShare),
	})
}

type lossRequest struct {
	Loss string `json:"loss" binding:"required"` // normalized
}

// ReportLoss handles POST /api/v1/admin/loss.
func (h *VaultHandler) ReportLoss(c *gin.Context) {
	var req lossRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	loss, err := utils.ParseBigInt(req.Loss)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.ReportLoss(c.Request.Context(), loss); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loss": req.Loss})
}

type assetConfigRequest struct {
	Asset    string `json:"asset" binding:"required"`
	Decimals uint8  `json:"decimals"`
	Allowed  bool   `json:"allowed"`
}

// SetAllowedAsset handles PUT /api/v1/admin/assets.
func (h *VaultHandler) SetAllowedAsset(c *gin.Context) {
	var req assetConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.SetAllowedAsset(c.Request.Context(), asset, req.Decimals, req.Allowed); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, req)
}

type destNetworkRequest struct {
	Network uint32 `json:"network" binding:"required"`
	Allowed bool   `json:"allowed"`
}

// SetDestinationNetwork handles PUT /api/v1/admin/destinations/networks.
func (h *VaultHandler) SetDestinationNetwork(c *gin.Context) {
	var req destNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.SetDestinationNetwork(c.Request.Context(), req.Network, req.Allowed); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, req)
}

type destAssetRequest struct {
	Network uint32 `json:"network" binding:"required"`
	Asset   string `json:"asset" binding:"required"`
	Allowed bool   `json:"allowed"`
}

// SetDestinationAsset handles PUT /api/v1/admin/destinations/assets.
func (h *VaultHandler) SetDestinationAsset(c *gin.Context) {
	var req destAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.SetDestinationAsset(c.Request.Context(), req.Network, asset, req.Allowed); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, req)
}

type feeConfigRequest struct {
	RateBps   uint32 `json:"rate_bps"`
	Recipient string `json:"recipient" binding:"required"`
}

// SetFeeConfig handles PUT /api/v1/admin/fee.
func (h *VaultHandler) SetFeeConfig(c *gin.Context) {
	var req feeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	recipient, err := parseAddress(req.Recipient)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.vault.SetFeeConfig(c.Request.Context(), req.RateBps, recipient); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, req)
}

// ResetHighWaterMark handles POST /api/v1/admin/hwm/reset.
func (h *VaultHandler) ResetHighWaterMark(c *gin.Context) {
	if err := h.vault.ResetHighWaterMark(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"reset": true})
}

// Pause handles POST /api/v1/admin/pause.
func (h *VaultHandler) Pause(c *gin.Context) {
	h.vault.Pause(c.Request.Context())
	respondOK(c, gin.H{"paused": true})
}

// Resume handles POST /api/v1/admin/resume.
func (h *VaultHandler) Resume(c *gin.Context) {
	h.vault.Resume(c.Request.Context())
	respondOK(c, gin.H{"paused": false})
}

type outboundTransferRequest struct {
	Asset       string `json:"asset" binding:"required"`
	DestNetwork uint32 `json:"dest_network" binding:"required"`
	Receiver    string `json:"receiver" binding:"required"` // hex payload
	Amount      string `json:"amount" binding:"required"`   // native precision
}

// ExecuteOutboundTransfer handles POST /api/v1/admin/transfers/outbound.
func (h *VaultHandler) ExecuteOutboundTransfer(c *gin.Context) {
	var req outboundTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	receiver, err := parseReceiverBytes(req.Receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	op, err := h.vault.ExecuteOutboundTransfer(c.Request.Context(), asset, req.DestNetwork, receiver, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"operation_id": op.OperationID.Hex(),
		"asset":        op.Asset.Hex(),
		"dest_network": op.DestNetwork,
		"amount":       utils.BigIntString(op.Amount),
	})
}

type vaultAllocateRequest struct {
	Vault  string `json:"vault" binding:"required"`
	Amount string `json:"amount" binding:"required"` // underlying native precision
}

// AllocateToVault handles POST /api/v1/admin/vaults/allocate.
func (h *VaultHandler) AllocateToVault(c *gin.Context) {
	var req vaultAllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	vault, err := parseAddress(req.Vault)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	position, err := h.vault.AllocateToVault(c.Request.Context(), vault, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"vault":      position.Vault.Hex(),
		"underlying": position.Underlying.Hex(),
		"shares":     utils.BigIntString(position.Shares),
	})
}

type vaultWithdrawRequest struct {
	Vault  string `json:"vault" binding:"required"`
	Shares string `json:"shares"`
}

// WithdrawFromVault handles POST /api/v1/admin/vaults/withdraw.
func (h *VaultHandler) WithdrawFromVault(c *gin.Context) {
	var req vaultWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	vault, err := parseAddress(req.Vault)
	if err != nil {
		respondError(c, err)
		return
	}
	shares, err := utils.ParseBigInt(req.Shares)
	if err != nil {
		respondError(c, err)
		return
	}
	assets, err := h.vault.WithdrawFromVault(c.Request.Context(), vault, shares)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"vault": vault.Hex(), "assets": utils.BigIntString(assets)})
}

// RedeemVault handles POST /api/v1/admin/vaults/redeem.
func (h *VaultHandler) RedeemVault(c *gin.Context) {
	var req struct {
		Vault string `json:"vault" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	vault, err := parseAddress(req.Vault)
	if err != nil {
		respondError(c, err)
		return
	}
	assets, err := h.vault.RedeemVault(c.Request.Context(), vault)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"vault": vault.Hex(), "assets": utils.BigIntString(assets)})
}

// GetVaultPositions handles GET /api/v1/vaults/positions.
func (h *VaultHandler) GetVaultPositions(c *gin.Context) {
	positions, err := h.vault.VaultPositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, 0, len(positions))
	for i := range positions {
		out = append(out, gin.H{
			"vault":            positions[i].Vault.Hex(),
			"underlying":       positions[i].Underlying.Hex(),
			"shares":           utils.BigIntString(positions[i].Shares),
			"asset_value":      utils.BigIntString(positions[i].AssetValue),
			"normalized_value": utils.BigIntString(positions[i].NormalizedValue),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": out})
}
