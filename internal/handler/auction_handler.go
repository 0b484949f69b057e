package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"auctionhouse/internal/models"
	"auctionhouse/internal/service"
	"auctionhouse/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, sellerID string, startingBid, bidStep int64, startTime, endTime time.Time) (*models.Auction, error)
	GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error)
	CancelAuction(ctx context.Context, auctionID int64, sellerID string) error
	CloseAuction(ctx context.Context, auctionID int64) error
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

func parseAuctionID(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("auction_id"), 10, 64)
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), req.SellerID, req.StartingBid, req.BidStep, req.StartTime, req.EndTime)
	if err != nil {
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to create auction", map[string]any{
			"seller_id": req.SellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.ID,
		"seller_id":  auction.SellerID,
		"status":     auction.Status,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, err, "invalid auction id")
		return
	}

	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// CancelAuctionHandler handles DELETE /auctions/:auction_id
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, err, "invalid auction id")
		return
	}

	var req CancelAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "CancelAuctionHandler", err)
		return
	}

	if err := h.service.CancelAuction(c.Request.Context(), auctionID, req.SellerID); err != nil {
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CancelAuctionHandler: cancel failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "auction cancelled successfully")
	LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{
		"auction_id": auctionID,
	})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close. A duplicate
// close signal is reported as success: the close already happened.
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	auctionID, err := parseAuctionID(c)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, err, "invalid auction id")
		return
	}

	if err := h.service.CloseAuction(c.Request.Context(), auctionID); err != nil {
		if errors.Is(err, service.ErrAlreadyClosed) {
			utils.JSONResponse(c, http.StatusOK, nil, "auction already closed")
			return
		}
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CloseAuctionHandler: close failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, nil, "auction closed successfully")
	LogSuccess("CloseAuctionHandler", "auction closed successfully", map[string]any{
		"auction_id": auctionID,
	})
}
