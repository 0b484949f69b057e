package handler

import (
	"context"
	"fmt"
	"net/http"

	"auctionhouse/internal/models"
	"auctionhouse/utils"

	"github.com/gin-gonic/gin"
)

type PointServiceInterface interface {
	Charge(ctx context.Context, userID string, incomePoint int64) (*models.Point, error)
	ReadBalance(ctx context.Context, userID string) (*models.Point, error)
}

type PointHandler struct {
	service PointServiceInterface
}

func NewPointHandler(service PointServiceInterface) *PointHandler {
	return &PointHandler{service: service}
}

// ChargePointHandler handles POST /users/:user_id/points
func (h *PointHandler) ChargePointHandler(c *gin.Context) {
	userID := c.Param("user_id")

	var req ChargePointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, "ChargePointHandler", err)
		return
	}

	point, err := h.service.Charge(c.Request.Context(), userID, req.IncomePoint)
	if err != nil {
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("ChargePointHandler: charge failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, toBalanceResponse(point), "points charged successfully")
	LogSuccess("ChargePointHandler", "points charged successfully", map[string]any{
		"user_id": userID,
		"income":  req.IncomePoint,
	})
}

// ReadBalanceHandler handles GET /users/:user_id/points
func (h *PointHandler) ReadBalanceHandler(c *gin.Context) {
	userID := c.Param("user_id")

	point, err := h.service.ReadBalance(c.Request.Context(), userID)
	if err != nil {
		status, message := MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	utils.JSONResponse(c, http.StatusOK, toBalanceResponse(point), "balance retrieved successfully")
}

func toBalanceResponse(point *models.Point) BalanceResponse {
	return BalanceResponse{
		UserID:          point.UserID,
		AvailablePoint:  point.AvailablePoint,
		DepositPoint:    point.DepositPoint,
		SettlementPoint: point.SettlementPoint,
	}
}
