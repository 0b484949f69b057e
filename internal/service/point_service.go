package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/lock"
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
	"auctionhouse/utils"
)

// BalanceCache is a read-through cache of point balances. Implemented by
// store.RedisStore in production.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID string) (*models.Point, error)
	SetBalance(ctx context.Context, point *models.Point) error
	InvalidateBalance(ctx context.Context, userID string) error
}

// PointService owns the per-user three-bucket point balance and its
// append-only log. Every mutator runs its whole read-check-mutate-append
// sequence inside a lock lease keyed by the affected user, consults the
// ledger log for duplicates first, and invalidates the cached balance
// after the transaction commits and before the lease is released.
type PointService struct {
	points store.PointStore
	bids   store.BidStore
	cache  BalanceCache
	locks  lock.Coordinator
	wait   time.Duration
	lease  time.Duration
}

func NewPointService(points store.PointStore, bids store.BidStore, cache BalanceCache, locks lock.Coordinator, wait, lease time.Duration) *PointService {
	return &PointService{
		points: points,
		bids:   bids,
		cache:  cache,
		locks:  locks,
		wait:   wait,
		lease:  lease,
	}
}

func userLockKey(userID string) string {
	return fmt.Sprintf("point:%s", userID)
}

// Deposit holds bidAmount of the bidder's available points against the
// bid. A first bid on the auction moves the full amount; a re-bid moves
// only the difference over the user's previous highest bid.
func (s *PointService) Deposit(ctx context.Context, auctionID int64, bidID string, bidAmount int64, userID string) error {
	if userID == "" || bidID == "" || bidAmount <= 0 {
		return fmt.Errorf("%w: deposit requires a user, a bid and a positive amount", ErrValidation)
	}

	return s.locks.WithLock(ctx, userLockKey(userID), s.wait, s.lease, func(ctx context.Context) error {
		processed, err := s.points.HasLogForBid(ctx, bidID, models.LogDeposit, models.LogAdditionalDeposit)
		if err != nil {
			return fmt.Errorf("failed to check deposit log for bid %s: %w", bidID, err)
		}
		if processed {
			return fmt.Errorf("%w: deposit for bid %s", ErrAlreadyProcessed, bidID)
		}

		previous, err := s.bids.GetUserHighestBidExcluding(ctx, auctionID, userID, bidID)
		if err != nil {
			return fmt.Errorf("failed to find previous bid: %w", err)
		}

		required := bidAmount
		logType := models.LogDeposit
		if previous > 0 {
			if bidAmount <= previous {
				return fmt.Errorf("%w: re-bid amount %d does not exceed previous deposit %d", ErrValidation, bidAmount, previous)
			}
			required = bidAmount - previous
			logType = models.LogAdditionalDeposit
		}

		_, err = s.points.MovePoints(ctx, userID, store.BucketAvailable, store.BucketDeposit, required, logType, &auctionID, &bidID)
		if err != nil {
			if errors.Is(err, store.ErrDBInsufficientFunds) {
				return fmt.Errorf("%w: need %d available", ErrInsufficientPoint, required)
			}
			if errors.Is(err, store.ErrDBPointNotFound) {
				return fmt.Errorf("%w: user %s", ErrPointNotFound, userID)
			}
			return fmt.Errorf("failed to move points to deposit: %w", err)
		}

		s.evictBalance(ctx, userID)
		return nil
	})
}

// SettleWinner moves the winning bid amount from the winner's deposit to
// settlement. A deposit shortfall here means the deposit bookkeeping is
// broken somewhere else; it is surfaced as ErrInsufficientDeposit and
// logged as a consistency violation.
func (s *PointService) SettleWinner(ctx context.Context, auctionID int64, winnerID string, winningBidAmount int64) error {
	return s.locks.WithLock(ctx, userLockKey(winnerID), s.wait, s.lease, func(ctx context.Context) error {
		processed, err := s.points.HasLogForAuctionUser(ctx, auctionID, winnerID, models.LogSettlement)
		if err != nil {
			return fmt.Errorf("failed to check settlement log: %w", err)
		}
		if processed {
			return fmt.Errorf("%w: settlement for auction %d", ErrAlreadyProcessed, auctionID)
		}

		_, err = s.points.MovePoints(ctx, winnerID, store.BucketDeposit, store.BucketSettlement, winningBidAmount, models.LogSettlement, &auctionID, nil)
		if err != nil {
			if errors.Is(err, store.ErrDBInsufficientFunds) {
				utils.Error("consistency violation: winner deposit below winning bid", map[string]any{
					"auction_id": auctionID,
					"winner_id":  winnerID,
					"amount":     winningBidAmount,
				})
				return fmt.Errorf("%w: auction %d winner %s", ErrInsufficientDeposit, auctionID, winnerID)
			}
			return fmt.Errorf("failed to settle winner: %w", err)
		}

		s.evictBalance(ctx, winnerID)
		return nil
	})
}

// RefundLoser returns a losing bidder's held deposit to their available
// balance. The winner is skipped.
func (s *PointService) RefundLoser(ctx context.Context, auctionID int64, loserID, winnerID string, loserHighestBid int64) error {
	if loserID == winnerID {
		return nil
	}

	return s.locks.WithLock(ctx, userLockKey(loserID), s.wait, s.lease, func(ctx context.Context) error {
		processed, err := s.points.HasLogForAuctionUser(ctx, auctionID, loserID, models.LogDepositToAvailable)
		if err != nil {
			return fmt.Errorf("failed to check refund log: %w", err)
		}
		if processed {
			return fmt.Errorf("%w: refund for auction %d", ErrAlreadyProcessed, auctionID)
		}

		_, err = s.points.MovePoints(ctx, loserID, store.BucketDeposit, store.BucketAvailable, loserHighestBid, models.LogDepositToAvailable, &auctionID, nil)
		if err != nil {
			if errors.Is(err, store.ErrDBInsufficientFunds) {
				utils.Error("consistency violation: loser deposit below held amount", map[string]any{
					"auction_id": auctionID,
					"loser_id":   loserID,
					"amount":     loserHighestBid,
				})
				return fmt.Errorf("%w: auction %d loser %s", ErrInsufficientDeposit, auctionID, loserID)
			}
			return fmt.Errorf("failed to refund loser: %w", err)
		}

		s.evictBalance(ctx, loserID)
		return nil
	})
}

// Charge credits external income to the user's available balance,
// creating the account on first charge. Idempotency of external payment
// identifiers is the caller's responsibility.
func (s *PointService) Charge(ctx context.Context, userID string, incomePoint int64) (*models.Point, error) {
	if userID == "" || incomePoint <= 0 {
		return nil, fmt.Errorf("%w: charge requires a user and a positive amount", ErrValidation)
	}

	var point *models.Point
	err := s.locks.WithLock(ctx, userLockKey(userID), s.wait, s.lease, func(ctx context.Context) error {
		var err error
		point, err = s.points.CreditEarn(ctx, userID, incomePoint)
		if err != nil {
			return fmt.Errorf("failed to charge points: %w", err)
		}
		s.evictBalance(ctx, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return point, nil
}

// ReadBalance reads through the cache. The value may be stale the instant
// a concurrent mutation completes; sufficiency decisions that must hold
// are re-checked inside the mutating lock scope, not here.
func (s *PointService) ReadBalance(ctx context.Context, userID string) (*models.Point, error) {
	if cached, err := s.cache.GetBalance(ctx, userID); err != nil {
		utils.Warn("balance cache read failed, falling back to store", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	} else if cached != nil {
		return cached, nil
	}

	point, err := s.points.GetPoint(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	if point == nil {
		return nil, fmt.Errorf("%w: user %s", ErrPointNotFound, userID)
	}

	if err := s.cache.SetBalance(ctx, point); err != nil {
		utils.Warn("failed to populate balance cache", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
	return point, nil
}

// ValidateSufficientPoints is an advisory pre-check used before a bid is
// attempted. The authoritative check happens again inside Deposit's lock.
func (s *PointService) ValidateSufficientPoints(ctx context.Context, userID string, amount int64) error {
	point, err := s.ReadBalance(ctx, userID)
	if err != nil {
		return err
	}
	if point.AvailablePoint < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientPoint, amount, point.AvailablePoint)
	}
	return nil
}

// evictBalance drops the cached balance while the lease is still held, so
// no reader observes a balance older than the mutation that just
// committed. Failures are logged; the cache entry expires by TTL anyway.
func (s *PointService) evictBalance(ctx context.Context, userID string) {
	if err := s.cache.InvalidateBalance(ctx, userID); err != nil {
		utils.Warn("failed to evict cached balance", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}
