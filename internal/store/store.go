package store

import (
	"context"
	"errors"

	"auctionhouse/internal/models"
)

var (
	ErrDBVersionConflict   = errors.New("database: auction version conflict")
	ErrDBInsufficientFunds = errors.New("database: insufficient funds in source bucket")
	ErrDBPointNotFound     = errors.New("database: point account not found")
)

// Bucket names one of the three balance columns a point movement touches.
type Bucket string

const (
	BucketAvailable  Bucket = "available_point"
	BucketDeposit    Bucket = "deposit_point"
	BucketSettlement Bucket = "settlement_point"
)

// AuctionStore persists auctions and owns the two contested writes: the
// optimistic price raise and the exactly-once status transition.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *models.Auction) (*models.Auction, error)
	GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error)
	// CreateBidAndRaisePrice inserts the bid and raises current_bid in one
	// transaction, guarded by the auction's version column. A stale version
	// rolls everything back and returns ErrDBVersionConflict.
	CreateBidAndRaisePrice(ctx context.Context, bid *models.Bid, version int64) error
	// TransitionToClosed moves an ONGOING auction to the given terminal
	// status. It reports false when another worker already won the
	// transition.
	TransitionToClosed(ctx context.Context, auctionID int64, status models.AuctionStatus, winnerID *string, winningBid *int64) (bool, error)
	// MarkDeleted soft-deletes a SCHEDULED auction owned by sellerID.
	MarkDeleted(ctx context.Context, auctionID int64, sellerID string) (bool, error)
	ActivateDueAuctions(ctx context.Context) (int64, error)
	ListExpiredOngoing(ctx context.Context) ([]int64, error)
}

// BidStore reads the immutable bid history.
type BidStore interface {
	GetHighestBid(ctx context.Context, auctionID int64) (*models.Bid, error)
	// GetUserHighestBidExcluding returns the user's highest previous bid
	// amount on the auction, ignoring excludeBidID; zero when none exists.
	GetUserHighestBidExcluding(ctx context.Context, auctionID int64, userID, excludeBidID string) (int64, error)
	// ListBidderBests returns each distinct bidder's highest bid.
	ListBidderBests(ctx context.Context, auctionID int64) ([]models.BidderBest, error)
}

// PointStore persists point balances and the append-only ledger log.
// MovePoints and CreditEarn each run as a single transaction that updates
// the balance row and appends the log entry with a post-change snapshot.
type PointStore interface {
	GetPoint(ctx context.Context, userID string) (*models.Point, error)
	CreditEarn(ctx context.Context, userID string, amount int64) (*models.Point, error)
	MovePoints(ctx context.Context, userID string, from, to Bucket, amount int64, logType models.PointLogType, auctionID *int64, bidID *string) (*models.Point, error)
	HasLogForBid(ctx context.Context, bidID string, types ...models.PointLogType) (bool, error)
	HasLogForAuctionUser(ctx context.Context, auctionID int64, userID string, logType models.PointLogType) (bool, error)
	ListLogs(ctx context.Context, userID string) ([]models.PointLog, error)
}
