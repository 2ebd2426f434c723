// Package handlers exposes the ledger over HTTP. Handlers parse and shape
// requests; every accounting decision is made by the service and core
// layers.
package handlers

import (
	"errors"
	"net/http"

	"hako-backend/internal/ledger"

	"github.com/gin-gonic/gin"
)

// statusFor maps core errors onto HTTP statuses: policy refusals are 403,
// state conflicts (replays, settled requests, underflows) are 409, anything
// else the core rejects is a 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrPaused),
		errors.Is(err, ledger.ErrAssetNotAllowed),
		errors.Is(err, ledger.ErrDestinationNotAllowed),
		errors.Is(err, ledger.ErrVaultNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrReplay),
		errors.Is(err, ledger.ErrNonceMismatch),
		errors.Is(err, ledger.ErrRequestNotPending),
		errors.Is(err, ledger.ErrManagedAssetsUnderflow),
		errors.Is(err, ledger.ErrCustodyUnderflow),
		errors.Is(err, ledger.ErrVaultAssetMismatch),
		errors.Is(err, ledger.ErrDecimalsImmutable):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrRequestNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
