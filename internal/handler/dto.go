package handler

import "time"

// Request/Response DTOs
type CreateAuctionRequest struct {
	SellerID    string    `json:"seller_id" binding:"required"`
	StartingBid int64     `json:"starting_bid" binding:"required,gt=0"`
	BidStep     int64     `json:"bid_step" binding:"required,gt=0"`
	StartTime   time.Time `json:"start_time" binding:"required"`
	EndTime     time.Time `json:"end_time" binding:"required"`
}

type CancelAuctionRequest struct {
	SellerID string `json:"seller_id" binding:"required"`
}

type PlaceBidRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	BidAmount int64  `json:"bid_amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	AuctionID int64  `json:"auction_id"`
	UserID    string `json:"user_id"`
	BidAmount int64  `json:"bid_amount"`
	CreatedAt string `json:"created_at"`
}

type ChargePointRequest struct {
	IncomePoint int64 `json:"income_point" binding:"required,gt=0"`
}

type BalanceResponse struct {
	UserID          string `json:"user_id"`
	AvailablePoint  int64  `json:"available_point"`
	DepositPoint    int64  `json:"deposit_point"`
	SettlementPoint int64  `json:"settlement_point"`
}
