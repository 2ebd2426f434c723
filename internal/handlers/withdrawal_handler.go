package handlers

import (
	"encoding/hex"
	"errors"

	"hako-backend/internal/ledger"
	"hako-backend/internal/services"
	"hako-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WithdrawalHandler serves the withdrawal request lifecycle.
type WithdrawalHandler struct {
	withdrawals *services.WithdrawalService
	logger      *logrus.Logger
}

func NewWithdrawalHandler(withdrawals *services.WithdrawalService, logger *logrus.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, logger: logger}
}

func requestResponse(req *ledger.WithdrawalRequest) gin.H {
	return gin.H{
		"request_id":    req.ID.Hex(),
		"owner":         req.Owner.Hex(),
		"receiver":      hex.EncodeToString(req.Receiver),
		"dest_network":  req.DestNetwork,
		"dest_asset":    req.DestAsset.Hex(),
		"amount":        utils.BigIntString(req.Amount),
		"locked_shares": utils.BigIntString(req.LockedShares),
		"status":        string(req.Status),
	}
}

type withdrawalRequestBody struct {
	Receiver    string `json:"receiver" binding:"required"` // hex payload
	DestNetwork uint32 `json:"dest_network" binding:"required"`
	DestAsset   string `json:"dest_asset" binding:"required"`
	Amount      string `json:"amount"`     // normalized, amount path
	MaxShares   string `json:"max_shares"` // slippage cap, amount path
	Shares      string `json:"shares"`     // redeem path
	MinAmount   string `json:"min_amount"` // slippage floor, redeem path
}

// RequestWithdrawal handles POST /api/v1/withdrawals. The owner is the
// authenticated caller. An amount books by value, shares books by count.
func (h *WithdrawalHandler) RequestWithdrawal(c *gin.Context) {
	var body withdrawalRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, err)
		return
	}
	owner, err := parseAddress(c.GetString("caller_address"))
	if err != nil {
		respondError(c, errors.New("caller has no ledger address"))
		return
	}
	receiver, err := parseReceiverBytes(body.Receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	destAsset, err := parseAddress(body.DestAsset)
	if err != nil {
		respondError(c, err)
		return
	}

	var req *ledger.WithdrawalRequest
	switch {
	case body.Amount != "" && body.Shares != "":
		respondError(c, errors.New("amount and shares are mutually exclusive"))
		return
	case body.Amount != "":
		amount, perr := utils.ParseBigInt(body.Amount)
		if perr != nil {
			respondError(c, perr)
			return
		}
		maxShares, perr := utils.ParseBigInt(body.MaxShares)
		if perr != nil {
			respondError(c, perr)
			return
		}
		if body.MaxShares == "" {
			maxShares = nil
		}
		req, err = h.withdrawals.RequestWithdrawal(c.Request.Context(), owner, receiver, body.DestNetwork, destAsset, amount, maxShares)
	case body.Shares != "":
		shares, perr := utils.ParseBigInt(body.Shares)
		if perr != nil {
			respondError(c, perr)
			return
		}
		minAmount, perr := utils.ParseBigInt(body.MinAmount)
		if perr != nil {
			respondError(c, perr)
			return
		}
		if body.MinAmount == "" {
			minAmount = nil
		}
		req, err = h.withdrawals.RequestRedeem(c.Request.Context(), owner, receiver, body.DestNetwork, destAsset, shares, minAmount)
	default:
		respondError(c, errors.New("amount or shares is required"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

type delegatedRequestBody struct {
	Owner       string `json:"owner" binding:"required"`
	Nonce       uint64 `json:"nonce"`
	Receiver    string `json:"receiver" binding:"required"`
	DestNetwork uint32 `json:"dest_network" binding:"required"`
	DestAsset   string `json:"dest_asset" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	MaxShares   string `json:"max_shares"`
}

// RequestWithdrawalFor handles POST /api/v1/withdrawals/delegated: a relayer
// books on the owner's behalf under the owner's withdrawal nonce.
func (h *WithdrawalHandler) RequestWithdrawalFor(c *gin.Context) {
	var body delegatedRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, err)
		return
	}
	owner, err := parseAddress(body.Owner)
	if err != nil {
		respondError(c, err)
		return
	}
	receiver, err := parseReceiverBytes(body.Receiver)
	if err != nil {
		respondError(c, err)
		return
	}
	destAsset, err := parseAddress(body.DestAsset)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	maxShares, err := utils.ParseBigInt(body.MaxShares)
	if err != nil {
		respondError(c, err)
		return
	}
	if body.MaxShares == "" {
		maxShares = nil
	}
	req, err := h.withdrawals.RequestWithdrawalFor(c.Request.Context(), owner, body.Nonce, receiver, body.DestNetwork, destAsset, amount, maxShares)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

type remoteRequestBody struct {
	RequestID     string `json:"request_id" binding:"required"`
	OriginNetwork uint32 `json:"origin_network" binding:"required"`
	OriginAccount string `json:"origin_account" binding:"required"`
	Receiver      string `json:"receiver" binding:"required"`
	DestNetwork   uint32 `json:"dest_network" binding:"required"`
	DestAsset     string `json:"dest_asset" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	MaxShares     string `json:"max_shares"`
}

// RecordRemoteRequest handles POST /api/v1/relay/withdrawals.
func (h *WithdrawalHandler) RecordRemoteRequest(c *gin.Context) {
	var body remoteRequestBody
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
	destAsset, err := parseAddress(body.DestAsset)
	if err != nil {
		respondError(c, err)
		return
	}
	amount, err := utils.ParseBigInt(body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	maxShares, err := utils.ParseBigInt(body.MaxShares)
	if err != nil {
		respondError(c, err)
		return
	}
	if body.MaxShares == "" {
		maxShares = nil
	}
	req, err := h.withdrawals.RecordRemoteRequest(c.Request.Context(), requestID, body.OriginNetwork, body.OriginAccount, receiver, body.DestNetwork, destAsset, amount, maxShares)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// CompleteRequest handles POST /api/v1/withdrawals/:id/complete.
func (h *WithdrawalHandler) CompleteRequest(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.withdrawals.CompleteRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// CancelRequest handles POST /api/v1/withdrawals/:id/cancel.
func (h *WithdrawalHandler) CancelRequest(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.withdrawals.CancelRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// GetRequest handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) GetRequest(c *gin.Context) {
	id, err := parseHash(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	req, err := h.withdrawals.Request(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, requestResponse(req))
}

// GetRequests handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) GetRequests(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		owner = c.GetString("caller_address")
	}
	if owner == "" {
		respondError(c, errors.New("owner query parameter is required"))
		return
	}
	page, pageSize := pageParams(c)
	requests, total, err := h.withdrawals.RequestsByOwner(c.Request.Context(), owner, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"requests": requests,
		"total":    total,
		"page":     page,
	})
}

// GetPendingRequests handles GET /api/v1/withdrawals/pending.
func (h *WithdrawalHandler) GetPendingRequests(c *gin.Context) {
	requests, err := h.withdrawals.PendingRequests(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"requests": requests})
}
