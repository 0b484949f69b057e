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

// SettlementLedger is the slice of the point ledger auction close needs.
type SettlementLedger interface {
	SettleWinner(ctx context.Context, auctionID int64, winnerID string, winningBidAmount int64) error
	RefundLoser(ctx context.Context, auctionID int64, loserID, winnerID string, loserHighestBid int64) error
}

// AuctionService owns the auction state machine. The conditional status
// update on the auction row is the concurrency guard: under N simultaneous
// close attempts exactly one observes ONGOING and performs the transition.
type AuctionService struct {
	auctions store.AuctionStore
	bids     store.BidStore
	ledger   SettlementLedger
}

func NewAuctionService(auctions store.AuctionStore, bids store.BidStore, ledger SettlementLedger) *AuctionService {
	return &AuctionService{auctions: auctions, bids: bids, ledger: ledger}
}

// CreateAuction registers an auction, SCHEDULED when its start time is in
// the future and ONGOING otherwise.
func (s *AuctionService) CreateAuction(ctx context.Context, sellerID string, startingBid, bidStep int64, startTime, endTime time.Time) (*models.Auction, error) {
	if sellerID == "" || startingBid <= 0 || bidStep <= 0 {
		return nil, fmt.Errorf("%w: auction requires a seller and positive starting bid and step", ErrValidation)
	}
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}

	status := models.AuctionScheduled
	if !startTime.After(time.Now()) {
		status = models.AuctionOngoing
	}

	auction := &models.Auction{
		SellerID:    sellerID,
		StartingBid: startingBid,
		BidStep:     bidStep,
		Status:      status,
		StartTime:   startTime,
		EndTime:     endTime,
	}

	created, err := s.auctions.CreateAuction(ctx, auction)
	if err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return created, nil
}

func (s *AuctionService) GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: auction %d", ErrAuctionNotFound, auctionID)
	}
	return auction, nil
}

// CancelAuction soft-deletes a SCHEDULED auction. Only the seller may
// cancel, and only before the auction starts.
func (s *AuctionService) CancelAuction(ctx context.Context, auctionID int64, sellerID string) error {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return fmt.Errorf("%w: auction %d", ErrAuctionNotFound, auctionID)
	}

	cancelled, err := s.auctions.MarkDeleted(ctx, auctionID, sellerID)
	if err != nil {
		return fmt.Errorf("failed to cancel auction %d: %w", auctionID, err)
	}
	if !cancelled {
		return fmt.Errorf("%w: auction %d is %s or not owned by caller", ErrCannotCancel, auctionID, auction.Status)
	}
	return nil
}

// CloseAuction finishes an auction exactly once. Duplicate or concurrent
// close signals observe a terminal status and fail with ErrAlreadyClosed,
// which callers treat as success-already-happened. Settlement and refund
// failures are per-user and never roll back the status transition.
func (s *AuctionService) CloseAuction(ctx context.Context, auctionID int64) error {
	auction, err := s.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to load auction %d: %w", auctionID, err)
	}
	if auction == nil {
		return fmt.Errorf("%w: auction %d", ErrAuctionNotFound, auctionID)
	}
	if auction.Status.Terminal() {
		return fmt.Errorf("%w: auction %d is %s", ErrAlreadyClosed, auctionID, auction.Status)
	}
	if auction.Status != models.AuctionOngoing {
		return fmt.Errorf("%w: auction %d is %s", ErrInvalidAuctionState, auctionID, auction.Status)
	}

	highest, err := s.bids.GetHighestBid(ctx, auctionID)
	if err != nil {
		return fmt.Errorf("failed to find highest bid for auction %d: %w", auctionID, err)
	}

	if highest == nil {
		transitioned, err := s.auctions.TransitionToClosed(ctx, auctionID, models.AuctionClosedFailed, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to close auction %d without bids: %w", auctionID, err)
		}
		if !transitioned {
			return fmt.Errorf("%w: auction %d", ErrAlreadyClosed, auctionID)
		}
		utils.Info("auction closed without bids", map[string]any{"auction_id": auctionID})
		return nil
	}

	transitioned, err := s.auctions.TransitionToClosed(ctx, auctionID, models.AuctionClosed, &highest.UserID, &highest.BidAmount)
	if err != nil {
		return fmt.Errorf("failed to close auction %d: %w", auctionID, err)
	}
	if !transitioned {
		return fmt.Errorf("%w: auction %d", ErrAlreadyClosed, auctionID)
	}

	utils.Info("auction closed", map[string]any{
		"auction_id":  auctionID,
		"winner_id":   highest.UserID,
		"winning_bid": highest.BidAmount,
	})

	s.settleAndRefund(ctx, auctionID, highest)
	return nil
}

// settleAndRefund applies the ledger side of a close. Each user's mutation
// is an independent unit of failure: one loser's failed refund must not
// block the winner's settlement or the other refunds.
func (s *AuctionService) settleAndRefund(ctx context.Context, auctionID int64, winning *models.Bid) {
	if err := s.ledger.SettleWinner(ctx, auctionID, winning.UserID, winning.BidAmount); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
		utils.Error("winner settlement failed", map[string]any{
			"auction_id": auctionID,
			"winner_id":  winning.UserID,
			"error":      err.Error(),
		})
	}

	bests, err := s.bids.ListBidderBests(ctx, auctionID)
	if err != nil {
		utils.Error("failed to list bidders for refund", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	for _, best := range bests {
		if best.UserID == winning.UserID {
			continue
		}
		if err := s.ledger.RefundLoser(ctx, auctionID, best.UserID, winning.UserID, best.HighestBid); err != nil && !errors.Is(err, ErrAlreadyProcessed) {
			utils.Error("loser refund failed", map[string]any{
				"auction_id": auctionID,
				"loser_id":   best.UserID,
				"error":      err.Error(),
			})
		}
	}
}

// ActivateDueAuctions promotes SCHEDULED auctions whose start time has
// passed. Called by the scheduler.
func (s *AuctionService) ActivateDueAuctions(ctx context.Context) (int64, error) {
	activated, err := s.auctions.ActivateDueAuctions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to activate due auctions: %w", err)
	}
	return activated, nil
}

// CloseDueAuctions delivers a close signal for every ONGOING auction past
// its end time. Signals may be duplicated across workers; ErrAlreadyClosed
// means another delivery already happened and is not an error here.
func (s *AuctionService) CloseDueAuctions(ctx context.Context) error {
	ids, err := s.auctions.ListExpiredOngoing(ctx)
	if err != nil {
		return fmt.Errorf("failed to list due auctions: %w", err)
	}

	for _, id := range ids {
		if err := s.CloseAuction(ctx, id); err != nil {
			if errors.Is(err, ErrAlreadyClosed) {
				continue
			}
			utils.Error("scheduled close failed", map[string]any{
				"auction_id": id,
				"error":      err.Error(),
			})
		}
	}
	return nil
}
