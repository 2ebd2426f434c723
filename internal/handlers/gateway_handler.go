package handlers

import (
	"net/http"

	"hako-backend/internal/services"
	"hako-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GatewayHandler serves the remote-side custody ledger.
type GatewayHandler struct {
	gateway *services.GatewayService
	logger  *logrus.Logger
}

func NewGatewayHandler(gateway *services.GatewayService, logger *logrus.Logger) *GatewayHandler {
	return &GatewayHandler{gateway: gateway, logger: logger}
}

type gatewayDepositRequest struct {
	Depositor string `json:"depositor" binding:"required"`
	Asset     string `json:"asset" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // native precision
}

// RecordDeposit handles POST /api/v1/gateway/deposits.
func (h *GatewayHandler) RecordDeposit(c *gin.Context) {
	var req gatewayDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(req.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	dep, err := h.gateway.RecordDeposit(c.Request.Context(), req.Depositor, asset, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"deposit_id":        dep.DepositID.Hex(),
		"depositor":         dep.Depositor,
		"asset":             dep.Asset.Hex(),
		"amount":            utils.BigIntString(dep.Amount),
		"normalized_amount": utils.BigIntString(dep.NormalizedAmount),
	})
}

type payoutRequestBody struct {
	RequestID string `json:"request_id" binding:"required"`
	Receiver  string `json:"receiver" binding:"required"` // hex payload
	Asset     string `json:"asset" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // normalized
}

// RecordPayoutRequest handles POST /api/v1/gateway/payouts.
func (h *GatewayHandler) RecordPayoutRequest(c *gin.Context) {
	var body payoutRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, err)
		return
	}
	requestID, err := parseHash(body.RequestID)
	if err != nil {
		respondError(c, err)
		return
	}
	receiver, err := parseReceiverBytes(body.Receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	asset, err := parseAddress(body.Asset)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.gateway.RecordPayoutRequest(c.Request.Context(), requestID, receiver, asset, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// CompletePayout handles POST /api/v1/gateway/payouts/:id/complete.
func (h *GatewayHandler) CompletePayout(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := h.gateway.CompletePayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"request":       requestResponse(result.Request),
		"native_amount": utils.BigIntString(result.NativeAmount),
	})
}

// CancelPayout handles POST /api/v1/gateway/payouts/:id/cancel.
func (h *GatewayHandler) CancelPayout(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.gateway.CancelPayout(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// GetPayout handles GET /api/v1/gateway/payouts/:id.
func (h *GatewayHandler) GetPayout(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.gateway.Request(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// GetCustody handles GET /api/v1/gateway/custody/:asset.
func (h *GatewayHandler) GetCustody(c *gin.Context) {
	asset, err := parseAddress(c.Param("asset"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"asset":   asset.Hex(),
		"balance": utils.BigIntString(h.gateway.CustodyOf(asset)),
		"paused":  h.gateway.Paused(),
	})
}

// SetAllowedAsset handles PUT /api/v1/gateway/admin/assets.
func (h *GatewayHandler) SetAllowedAsset(c *gin.Context) {
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
	if err := h.gateway.SetAllowedAsset(c.Request.Context(), asset, req.Decimals, req.Allowed); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, req)
}

// Pause handles POST /api/v1/gateway/admin/pause.
func (h *GatewayHandler) Pause(c *gin.Context) {
	h.gateway.Pause(c.Request.Context())
	respondOK(c, gin.H{"paused": true})
}

// Resume handles POST /api/v1/gateway/admin/resume.
func (h *GatewayHandler) Resume(c *gin.Context) {
	h.gateway.Resume(c.Request.Context())
	respondOK(c, gin.H{"paused": false})
}

// AllocateToVault handles POST /api/v1/gateway/admin/vaults/allocate.
func (h *GatewayHandler) AllocateToVault(c *gin.Context) {
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
	position, err := h.gateway.AllocateToVault(c.Request.Context(), vault, amount)
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

// WithdrawFromVault handles POST /api/v1/gateway/admin/vaults/withdraw.
func (h *GatewayHandler) WithdrawFromVault(c *gin.Context) {
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
	assets, err := h.gateway.WithdrawFromVault(c.Request.Context(), vault, shares)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"vault": vault.Hex(), "assets": utils.BigIntString(assets)})
}

// GetVaultPositions handles GET /api/v1/gateway/vaults/positions.
func (h *GatewayHandler) GetVaultPositions(c *gin.Context) {
	positions, err := h.gateway.VaultPositions(c.Request.Context())
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
