package handler

import (
	"errors"
	"fmt"
	"net/http"

	"auctionhouse/internal/lock"
	"auctionhouse/internal/service"
	"auctionhouse/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, service.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, service.ErrPointNotFound):
		return http.StatusNotFound, "point account not found"
	case errors.Is(err, service.ErrSellerCannotBid):
		return http.StatusForbidden, "seller cannot bid on own auction"
	case errors.Is(err, service.ErrInsufficientPoint):
		return http.StatusForbidden, "insufficient available points"
	case errors.Is(err, service.ErrInvalidAuctionState):
		return http.StatusConflict, "auction is not open for bidding"
	case errors.Is(err, service.ErrStaleBid):
		return http.StatusConflict, "bid price is stale, refresh and retry"
	case errors.Is(err, service.ErrAlreadyClosed):
		return http.StatusConflict, "auction already closed"
	case errors.Is(err, service.ErrAlreadyProcessed):
		return http.StatusConflict, "operation already processed"
	case errors.Is(err, service.ErrCannotCancel):
		return http.StatusConflict, "auction cannot be cancelled"
	case errors.Is(err, lock.ErrLockNotAcquired):
		return http.StatusServiceUnavailable, "busy, retry shortly"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
