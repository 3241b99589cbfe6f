package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bidflow/engine"
)

// errorResponse 是所有錯誤回應的統一格式，code 是機器可讀的分類。
type errorResponse struct {
	Code     string `json:"code"`
	Rule     string `json:"rule,omitempty"`
	ItemCode string `json:"item_code,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// writeEngineError 把引擎的錯誤分類映射為HTTP回應。
func writeEngineError(c *gin.Context, err error) {
	var violation *engine.RuleViolation
	if errors.As(err, &violation) {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Code:     "bid_rejected",
			Rule:     string(violation.Rule),
			ItemCode: violation.ItemCode,
			Detail:   violation.Detail,
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrInvalidToken):
		c.JSON(http.StatusNotFound, errorResponse{Code: "invalid_token", Detail: err.Error()})
	case errors.Is(err, engine.ErrAuctionNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Code: "auction_not_found", Detail: err.Error()})
	case errors.Is(err, engine.ErrAuctionCompleted):
		c.JSON(http.StatusGone, errorResponse{Code: "auction_completed", Detail: err.Error()})
	case errors.Is(err, engine.ErrAuctionNotActive):
		c.JSON(http.StatusConflict, errorResponse{Code: "auction_not_active", Detail: err.Error()})
	case errors.Is(err, engine.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, errorResponse{Code: "auction_already_started", Detail: err.Error()})
	case errors.Is(err, engine.ErrSupplierConcluded):
		c.JSON(http.StatusForbidden, errorResponse{Code: "supplier_concluded", Detail: err.Error()})
	case errors.Is(err, engine.ErrBidMismatch):
		c.JSON(http.StatusBadRequest, errorResponse{Code: "bid_mismatch", Detail: err.Error()})
	case errors.Is(err, engine.ErrConcurrencyTimeout):
		// 暫時性失敗，客戶端可安全重送同一筆出價
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, errorResponse{Code: "concurrency_timeout", Detail: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal_error"})
	}
}
