package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/models"

	"github.com/stretchr/testify/require"
)

func newAuctionFixture() (*memoryStore, *PointService, *AuctionService) {
	db := newMemoryStore()
	points := newTestPointService(db, newMemoryCache())
	auctions := NewAuctionService(db, db, points)
	return db, points, auctions
}

// chargeAndDeposit funds a bidder, records their bid and holds the deposit.
func chargeAndDeposit(t *testing.T, db *memoryStore, points *PointService, auctionID int64, userID, bidID string, amount int64) {
	t.Helper()
	ctx := context.Background()
	_, err := points.Charge(ctx, userID, 10_000)
	require.NoError(t, err)
	db.addBid(bidID, auctionID, userID, amount)
	require.NoError(t, points.Deposit(ctx, auctionID, bidID, amount, userID))
}

func TestAuctionService_CreateAuction(t *testing.T) {
	t.Parallel()

	_, _, svc := newAuctionFixture()
	ctx := context.Background()

	t.Run("future start is scheduled", func(t *testing.T) {
		auction, err := svc.CreateAuction(ctx, "seller", 1000, 100, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		require.Equal(t, models.AuctionScheduled, auction.Status)
		require.NotZero(t, auction.ID)
	})

	t.Run("past start goes straight to ongoing", func(t *testing.T) {
		auction, err := svc.CreateAuction(ctx, "seller", 1000, 100, time.Now().Add(-time.Minute), time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.Equal(t, models.AuctionOngoing, auction.Status)
	})

	t.Run("validation", func(t *testing.T) {
		start, end := time.Now().Add(time.Hour), time.Now().Add(2*time.Hour)

		_, err := svc.CreateAuction(ctx, "", 1000, 100, start, end)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.CreateAuction(ctx, "seller", 0, 100, start, end)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.CreateAuction(ctx, "seller", 1000, -1, start, end)
		require.ErrorIs(t, err, ErrValidation)

		_, err = svc.CreateAuction(ctx, "seller", 1000, 100, end, start)
		require.ErrorIs(t, err, ErrValidation)
	})
}

func TestAuctionService_GetAuction_NotFound(t *testing.T) {
	t.Parallel()

	_, _, svc := newAuctionFixture()
	_, err := svc.GetAuction(context.Background(), 42)
	require.ErrorIs(t, err, ErrAuctionNotFound)
}

func TestAuctionService_CancelAuction(t *testing.T) {
	t.Parallel()

	db, _, svc := newAuctionFixture()
	ctx := context.Background()

	scheduled, err := svc.CreateAuction(ctx, "seller", 1000, 100, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	ongoing := createOngoingAuction(t, db, "seller", 1000, 100)

	t.Run("wrong seller", func(t *testing.T) {
		require.ErrorIs(t, svc.CancelAuction(ctx, scheduled.ID, "intruder"), ErrCannotCancel)
	})

	t.Run("already started", func(t *testing.T) {
		require.ErrorIs(t, svc.CancelAuction(ctx, ongoing.ID, "seller"), ErrCannotCancel)
	})

	t.Run("unknown auction", func(t *testing.T) {
		require.ErrorIs(t, svc.CancelAuction(ctx, 999, "seller"), ErrAuctionNotFound)
	})

	t.Run("seller cancels scheduled", func(t *testing.T) {
		require.NoError(t, svc.CancelAuction(ctx, scheduled.ID, "seller"))

		// Cancelled auctions are invisible afterwards.
		_, err := svc.GetAuction(ctx, scheduled.ID)
		require.ErrorIs(t, err, ErrAuctionNotFound)
	})
}

func TestAuctionService_CloseAuction_SettlesWinnerAndRefundsLosers(t *testing.T) {
	t.Parallel()

	db, points, svc := newAuctionFixture()
	ctx := context.Background()

	auction := createOngoingAuction(t, db, "seller", 1000, 100)
	chargeAndDeposit(t, db, points, auction.ID, "winner", "bidW", 2500)
	chargeAndDeposit(t, db, points, auction.ID, "loser", "bidL", 2400)

	require.NoError(t, svc.CloseAuction(ctx, auction.ID))

	closed, err := db.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionClosed, closed.Status)
	require.NotNil(t, closed.WinnerID)
	require.Equal(t, "winner", *closed.WinnerID)
	require.Equal(t, int64(2500), *closed.CurrentBid)

	winnerPoint, err := db.GetPoint(ctx, "winner")
	require.NoError(t, err)
	require.Equal(t, int64(7500), winnerPoint.AvailablePoint)
	require.Zero(t, winnerPoint.DepositPoint)
	require.Equal(t, int64(2500), winnerPoint.SettlementPoint)

	loserPoint, err := db.GetPoint(ctx, "loser")
	require.NoError(t, err)
	require.Equal(t, int64(10_000), loserPoint.AvailablePoint)
	require.Zero(t, loserPoint.DepositPoint)
	require.Zero(t, loserPoint.SettlementPoint)
}

func TestAuctionService_CloseAuction_NoBids(t *testing.T) {
	t.Parallel()

	db, _, svc := newAuctionFixture()
	ctx := context.Background()

	auction := createOngoingAuction(t, db, "seller", 1000, 100)
	require.NoError(t, svc.CloseAuction(ctx, auction.ID))

	closed, err := db.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionClosedFailed, closed.Status)
	require.Nil(t, closed.WinnerID)
	require.Empty(t, db.logs)
}

func TestAuctionService_CloseAuction_Rejections(t *testing.T) {
	t.Parallel()

	db, _, svc := newAuctionFixture()
	ctx := context.Background()

	t.Run("unknown auction", func(t *testing.T) {
		require.ErrorIs(t, svc.CloseAuction(ctx, 999), ErrAuctionNotFound)
	})

	t.Run("not started yet", func(t *testing.T) {
		scheduled, err := svc.CreateAuction(ctx, "seller", 1000, 100, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
		require.NoError(t, err)
		require.ErrorIs(t, svc.CloseAuction(ctx, scheduled.ID), ErrInvalidAuctionState)
	})

	t.Run("duplicate close", func(t *testing.T) {
		auction := createOngoingAuction(t, db, "seller", 1000, 100)
		require.NoError(t, svc.CloseAuction(ctx, auction.ID))
		require.ErrorIs(t, svc.CloseAuction(ctx, auction.ID), ErrAlreadyClosed)
	})
}

// N workers deliver the close signal at once; exactly one performs the
// transition and the ledger runs once.
func TestAuctionService_CloseAuction_ExactlyOnce(t *testing.T) {
	t.Parallel()

	db, points, svc := newAuctionFixture()
	ctx := context.Background()

	auction := createOngoingAuction(t, db, "seller", 1000, 100)
	chargeAndDeposit(t, db, points, auction.ID, "winner", "bidW", 2500)
	chargeAndDeposit(t, db, points, auction.ID, "loser", "bidL", 2400)

	const workers = 10
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.CloseAuction(ctx, auction.ID)
		}(i)
	}
	wg.Wait()

	var wins, already int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyClosed):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, already)

	var settlements, refunds int
	for _, l := range db.logs {
		switch l.Type {
		case models.LogSettlement:
			settlements++
		case models.LogDepositToAvailable:
			refunds++
		}
	}
	require.Equal(t, 1, settlements)
	require.Equal(t, 1, refunds)
}

func TestAuctionService_CloseAuction_RefundFailureIsIsolated(t *testing.T) {
	t.Parallel()

	db, points, svc := newAuctionFixture()
	ctx := context.Background()

	auction := createOngoingAuction(t, db, "seller", 1000, 100)
	chargeAndDeposit(t, db, points, auction.ID, "winner", "bidW", 2500)
	chargeAndDeposit(t, db, points, auction.ID, "flaky", "bidF", 2300)
	chargeAndDeposit(t, db, points, auction.ID, "steady", "bidS", 2400)

	db.failMovesFor("flaky")

	// The stuck refund is logged and the close still succeeds.
	require.NoError(t, svc.CloseAuction(ctx, auction.ID))

	winnerPoint, err := db.GetPoint(ctx, "winner")
	require.NoError(t, err)
	require.Equal(t, int64(2500), winnerPoint.SettlementPoint)

	steadyPoint, err := db.GetPoint(ctx, "steady")
	require.NoError(t, err)
	require.Equal(t, int64(10_000), steadyPoint.AvailablePoint)
	require.Zero(t, steadyPoint.DepositPoint)

	flakyPoint, err := db.GetPoint(ctx, "flaky")
	require.NoError(t, err)
	require.Equal(t, int64(2300), flakyPoint.DepositPoint)
}

func TestAuctionService_CloseAuction_ToleratesRepeatedLedgerWork(t *testing.T) {
	t.Parallel()

	db, points, svc := newAuctionFixture()
	ctx := context.Background()

	auction := createOngoingAuction(t, db, "seller", 1000, 100)
	chargeAndDeposit(t, db, points, auction.ID, "winner", "bidW", 2500)
	chargeAndDeposit(t, db, points, auction.ID, "loser", "bidL", 2400)

	// A previous partial close already settled the winner.
	require.NoError(t, points.SettleWinner(ctx, auction.ID, "winner", 2500))

	require.NoError(t, svc.CloseAuction(ctx, auction.ID))

	winnerPoint, err := db.GetPoint(ctx, "winner")
	require.NoError(t, err)
	require.Equal(t, int64(2500), winnerPoint.SettlementPoint)

	loserPoint, err := db.GetPoint(ctx, "loser")
	require.NoError(t, err)
	require.Equal(t, int64(10_000), loserPoint.AvailablePoint)

	var settlements int
	for _, l := range db.logs {
		if l.Type == models.LogSettlement {
			settlements++
		}
	}
	require.Equal(t, 1, settlements)
}

func TestAuctionService_ActivateDueAuctions(t *testing.T) {
	t.Parallel()

	db, _, svc := newAuctionFixture()
	ctx := context.Background()

	due, err := db.CreateAuction(ctx, &models.Auction{
		SellerID:    "seller",
		StartingBid: 1000,
		BidStep:     100,
		Status:      models.AuctionScheduled,
		StartTime:   time.Now().Add(-time.Minute),
		EndTime:     time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	notDue, err := svc.CreateAuction(ctx, "seller", 1000, 100, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	activated, err := svc.ActivateDueAuctions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), activated)

	a, err := db.GetAuction(ctx, due.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionOngoing, a.Status)

	b, err := db.GetAuction(ctx, notDue.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionScheduled, b.Status)
}

func TestAuctionService_CloseDueAuctions(t *testing.T) {
	t.Parallel()

	db, _, svc := newAuctionFixture()
	ctx := context.Background()

	expired, err := db.CreateAuction(ctx, &models.Auction{
		SellerID:    "seller",
		StartingBid: 1000,
		BidStep:     100,
		Status:      models.AuctionOngoing,
		StartTime:   time.Now().Add(-time.Hour),
		EndTime:     time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	running := createOngoingAuction(t, db, "seller", 1000, 100)

	require.NoError(t, svc.CloseDueAuctions(ctx))

	a, err := db.GetAuction(ctx, expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionClosedFailed, a.Status)

	b, err := db.GetAuction(ctx, running.ID)
	require.NoError(t, err)
	require.Equal(t, models.AuctionOngoing, b.Status)
}
