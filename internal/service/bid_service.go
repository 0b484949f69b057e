package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"auctionhouse/utils"
)

// BidLedger is the slice of the point ledger the bid engine needs.
type BidLedger interface {
	Deposit(ctx context.Context, auctionID int64, bidID string, bidAmount int64, userID string) error
	ValidateSufficientPoints(ctx context.Context, userID string, amount int64) error
}

// BidService serializes competing price raises on an auction. It takes no
// per-auction lock: the authoritative price check plus the version-guarded
// write on the auction row let at most one of N concurrent bidders win a
// price point; the rest fail fast with ErrStaleBid.
type BidService struct {
	auctions store.AuctionStore
	ledger   BidLedger
}

func NewBidService(auctions store.AuctionStore, ledger BidLedger) *BidService {
	return &BidService{auctions: auctions, ledger: ledger}
}

// PlaceBid validates the claimed next price against the authoritative one
// and, on match, persists the bid and holds the deposit.
func (s *BidService) PlaceBid(ctx context.Context, auctionID int64, userID string, claimedAmount int64) (*models.Bid, error) {
	if userID == "" || claimedAmount <= 0 {
		return nil, fmt.Errorf("%w: bid requires a user and a positive amount", ErrValidation)
	}

	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: auction %d", ErrAuctionNotFound, auctionID)
	}
	if auction.Status != models.AuctionOngoing {
		return nil, fmt.Errorf("%w: auction %d is %s", ErrInvalidAuctionState, auctionID, auction.Status)
	}
	if auction.SellerID == userID {
		return nil, fmt.Errorf("%w: auction %d", ErrSellerCannotBid, auctionID)
	}

	// A claimed amount that no longer matches means a faster bidder
	// already raised the price; fail fast instead of silently overbidding.
	authoritativeNext := auction.NextPrice()
	if claimedAmount != authoritativeNext {
		return nil, fmt.Errorf("%w: claimed %d, current next price is %d", ErrStaleBid, claimedAmount, authoritativeNext)
	}

	if err := s.ledger.ValidateSufficientPoints(ctx, userID, authoritativeNext); err != nil {
		return nil, err
	}

	bid := &models.Bid{
		ID:        utils.GenerateID(),
		AuctionID: auctionID,
		UserID:    userID,
		BidAmount: authoritativeNext,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.auctions.CreateBidAndRaisePrice(ctx, bid, auction.Version); err != nil {
		if errors.Is(err, store.ErrDBVersionConflict) {
			return nil, fmt.Errorf("%w: another bid won price %d", ErrStaleBid, authoritativeNext)
		}
		return nil, fmt.Errorf("failed to record bid: %w", err)
	}

	if err := s.ledger.Deposit(ctx, auctionID, bid.ID, authoritativeNext, userID); err != nil {
		utils.Error("bid persisted but deposit failed", map[string]any{
			"auction_id": auctionID,
			"bid_id":     bid.ID,
			"user_id":    userID,
			"error":      err.Error(),
		})
		return nil, err
	}

	return bid, nil
}
