package models

import "time"

// AuctionStatus is the lifecycle state of an auction. Transitions are
// SCHEDULED -> ONGOING -> {CLOSED, CLOSED_FAILED} and SCHEDULED -> DELETED;
// CLOSED, CLOSED_FAILED and DELETED are terminal.
type AuctionStatus string

const (
	AuctionScheduled    AuctionStatus = "SCHEDULED"
	AuctionOngoing      AuctionStatus = "ONGOING"
	AuctionClosed       AuctionStatus = "CLOSED"
	AuctionClosedFailed AuctionStatus = "CLOSED_FAILED"
	AuctionDeleted      AuctionStatus = "DELETED"
)

// Terminal reports whether no further transition is permitted.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionClosed || s == AuctionClosedFailed || s == AuctionDeleted
}

type Auction struct {
	ID               int64         `json:"id"`
	SellerID         string        `json:"seller_id"`
	StartingBid      int64         `json:"starting_bid"`
	BidStep          int64         `json:"bid_step"`
	CurrentBid       *int64        `json:"current_bid,omitempty"`
	Status           AuctionStatus `json:"status"`
	WinnerID         *string       `json:"winner_id,omitempty"`
	ParticipantCount int           `json:"participant_count"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Version          int64         `json:"-"`
	Deleted          bool          `json:"-"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NextPrice is the only amount the next bid may carry.
func (a *Auction) NextPrice() int64 {
	if a.CurrentBid != nil {
		return *a.CurrentBid + a.BidStep
	}
	return a.StartingBid + a.BidStep
}

// Bid is immutable once created. A user may re-bid on the same auction;
// only their highest bid is economically relevant.
type Bid struct {
	ID        string    `json:"id"`
	AuctionID int64     `json:"auction_id"`
	UserID    string    `json:"user_id"`
	BidAmount int64     `json:"bid_amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Point holds a user's three-part balance. The sum of the three buckets
// equals the sum of all EARN amounts for the user; mutations only move
// value between buckets or add to available via a charge.
type Point struct {
	UserID          string    `json:"user_id"`
	AvailablePoint  int64     `json:"available_point"`
	DepositPoint    int64     `json:"deposit_point"`
	SettlementPoint int64     `json:"settlement_point"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PointLogType classifies a ledger entry.
type PointLogType string

const (
	LogEarn               PointLogType = "EARN"
	LogDeposit            PointLogType = "DEPOSIT"
	LogAdditionalDeposit  PointLogType = "ADDITIONAL_DEPOSIT"
	LogSettlement         PointLogType = "SETTLEMENT"
	LogDepositToAvailable PointLogType = "DEPOSIT_TO_AVAILABLE"
	LogWithdraw           PointLogType = "WITHDRAW"
	LogRefund             PointLogType = "REFUND"
)

// PointLog is an append-only ledger entry. The three balance fields are a
// snapshot taken after the entry was applied.
type PointLog struct {
	ID              int64        `json:"id"`
	UserID          string       `json:"user_id"`
	Type            PointLogType `json:"type"`
	Change          int64        `json:"change"`
	AuctionID       *int64       `json:"auction_id,omitempty"`
	BidID           *string      `json:"bid_id,omitempty"`
	AvailablePoint  int64        `json:"available_point"`
	DepositPoint    int64        `json:"deposit_point"`
	SettlementPoint int64        `json:"settlement_point"`
	CreatedAt       time.Time    `json:"created_at"`
}

// BidderBest is one distinct bidder's highest bid on an auction, used to
// settle the winner and refund every loser exactly their held amount.
type BidderBest struct {
	UserID     string
	HighestBid int64
}
