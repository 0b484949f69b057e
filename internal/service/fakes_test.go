package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auctionhouse/internal/lock"
	"auctionhouse/internal/models"
	"auctionhouse/internal/store"
)

// memoryStore is an in-memory stand-in for store.DBStore. The conditional
// updates carry the same guards as the SQL statements, applied atomically
// under one mutex, so the concurrency behavior the services rely on
// (version conflicts, exactly-once transitions) is preserved.
type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	nextLog  int64
	auctions map[int64]*models.Auction
	bids     []models.Bid
	points   map[string]*models.Point
	logs     []models.PointLog

	// moveErr forces MovePoints to fail for a given user.
	moveErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		auctions: make(map[int64]*models.Auction),
		points:   make(map[string]*models.Point),
		moveErr:  make(map[string]error),
	}
}

func cloneAuction(a *models.Auction) *models.Auction {
	c := *a
	if a.CurrentBid != nil {
		v := *a.CurrentBid
		c.CurrentBid = &v
	}
	if a.WinnerID != nil {
		v := *a.WinnerID
		c.WinnerID = &v
	}
	return &c
}

func clonePoint(p *models.Point) *models.Point {
	c := *p
	return &c
}

func (m *memoryStore) CreateAuction(_ context.Context, auction *models.Auction) (*models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now().UTC()
	auction.ID = m.nextID
	auction.Version = 0
	auction.CreatedAt = now
	auction.UpdatedAt = now
	m.auctions[auction.ID] = cloneAuction(auction)
	return cloneAuction(auction), nil
}

func (m *memoryStore) GetAuction(_ context.Context, auctionID int64) (*models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[auctionID]
	if !ok || a.Deleted {
		return nil, nil
	}
	return cloneAuction(a), nil
}

func (m *memoryStore) CreateBidAndRaisePrice(_ context.Context, bid *models.Bid, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[bid.AuctionID]
	if !ok || a.Deleted || a.Status != models.AuctionOngoing || a.Version != version {
		return store.ErrDBVersionConflict
	}

	hasPriorBid := false
	for _, b := range m.bids {
		if b.AuctionID == bid.AuctionID && b.UserID == bid.UserID {
			hasPriorBid = true
			break
		}
	}

	bid.CreatedAt = time.Now().UTC()
	m.bids = append(m.bids, *bid)

	amount := bid.BidAmount
	a.CurrentBid = &amount
	if !hasPriorBid {
		a.ParticipantCount++
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryStore) TransitionToClosed(_ context.Context, auctionID int64, status models.AuctionStatus, winnerID *string, winningBid *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[auctionID]
	if !ok || a.Deleted || a.Status != models.AuctionOngoing {
		return false, nil
	}

	a.Status = status
	if winnerID != nil {
		v := *winnerID
		a.WinnerID = &v
	} else {
		a.WinnerID = nil
	}
	if winningBid != nil {
		v := *winningBid
		a.CurrentBid = &v
	}
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *memoryStore) MarkDeleted(_ context.Context, auctionID int64, sellerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[auctionID]
	if !ok || a.Deleted || a.SellerID != sellerID || a.Status != models.AuctionScheduled {
		return false, nil
	}

	a.Status = models.AuctionDeleted
	a.Deleted = true
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *memoryStore) ActivateDueAuctions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var activated int64
	for _, a := range m.auctions {
		if a.Status == models.AuctionScheduled && !a.Deleted && !a.StartTime.After(now) {
			a.Status = models.AuctionOngoing
			a.Version++
			activated++
		}
	}
	return activated, nil
}

func (m *memoryStore) ListExpiredOngoing(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var ids []int64
	for id, a := range m.auctions {
		if a.Status == models.AuctionOngoing && !a.Deleted && !a.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) GetHighestBid(_ context.Context, auctionID int64) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *models.Bid
	for i := range m.bids {
		b := &m.bids[i]
		if b.AuctionID != auctionID {
			continue
		}
		if best == nil || b.BidAmount > best.BidAmount ||
			(b.BidAmount == best.BidAmount && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	c := *best
	return &c, nil
}

func (m *memoryStore) GetUserHighestBidExcluding(_ context.Context, auctionID int64, userID, excludeBidID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var highest int64
	for _, b := range m.bids {
		if b.AuctionID == auctionID && b.UserID == userID && b.ID != excludeBidID && b.BidAmount > highest {
			highest = b.BidAmount
		}
	}
	return highest, nil
}

func (m *memoryStore) ListBidderBests(_ context.Context, auctionID int64) ([]models.BidderBest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bestByUser := make(map[string]int64)
	var order []string
	for _, b := range m.bids {
		if b.AuctionID != auctionID {
			continue
		}
		if prev, ok := bestByUser[b.UserID]; !ok {
			bestByUser[b.UserID] = b.BidAmount
			order = append(order, b.UserID)
		} else if b.BidAmount > prev {
			bestByUser[b.UserID] = b.BidAmount
		}
	}

	var bests []models.BidderBest
	for _, userID := range order {
		bests = append(bests, models.BidderBest{UserID: userID, HighestBid: bestByUser[userID]})
	}
	return bests, nil
}

func (m *memoryStore) GetPoint(_ context.Context, userID string) (*models.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.points[userID]
	if !ok {
		return nil, nil
	}
	return clonePoint(p), nil
}

func (m *memoryStore) CreditEarn(_ context.Context, userID string, amount int64) (*models.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	p, ok := m.points[userID]
	if !ok {
		p = &models.Point{UserID: userID, CreatedAt: now}
		m.points[userID] = p
	}
	p.AvailablePoint += amount
	p.UpdatedAt = now

	m.appendLogLocked(userID, models.LogEarn, amount, nil, nil, p)
	return clonePoint(p), nil
}

func (m *memoryStore) MovePoints(_ context.Context, userID string, from, to store.Bucket, amount int64, logType models.PointLogType, auctionID *int64, bidID *string) (*models.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.moveErr[userID]; err != nil {
		return nil, err
	}

	p, ok := m.points[userID]
	if !ok {
		return nil, store.ErrDBPointNotFound
	}
	if bucketBalance(p, from) < amount {
		return nil, store.ErrDBInsufficientFunds
	}

	addToBucket(p, from, -amount)
	addToBucket(p, to, amount)
	p.UpdatedAt = time.Now().UTC()

	m.appendLogLocked(userID, logType, amount, auctionID, bidID, p)
	return clonePoint(p), nil
}

func (m *memoryStore) appendLogLocked(userID string, logType models.PointLogType, change int64, auctionID *int64, bidID *string, p *models.Point) {
	m.nextLog++
	log := models.PointLog{
		ID:              m.nextLog,
		UserID:          userID,
		Type:            logType,
		Change:          change,
		AvailablePoint:  p.AvailablePoint,
		DepositPoint:    p.DepositPoint,
		SettlementPoint: p.SettlementPoint,
		CreatedAt:       time.Now().UTC(),
	}
	if auctionID != nil {
		v := *auctionID
		log.AuctionID = &v
	}
	if bidID != nil {
		v := *bidID
		log.BidID = &v
	}
	m.logs = append(m.logs, log)
}

func (m *memoryStore) HasLogForBid(_ context.Context, bidID string, types ...models.PointLogType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.logs {
		if l.BidID == nil || *l.BidID != bidID {
			continue
		}
		for _, t := range types {
			if l.Type == t {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memoryStore) HasLogForAuctionUser(_ context.Context, auctionID int64, userID string, logType models.PointLogType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.logs {
		if l.AuctionID != nil && *l.AuctionID == auctionID && l.UserID == userID && l.Type == logType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) ListLogs(_ context.Context, userID string) ([]models.PointLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var logs []models.PointLog
	for _, l := range m.logs {
		if l.UserID == userID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// addBid seeds a bid row directly, for tests that exercise the ledger
// without going through the bid engine.
func (m *memoryStore) addBid(id string, auctionID int64, userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids = append(m.bids, models.Bid{
		ID:        id,
		AuctionID: auctionID,
		UserID:    userID,
		BidAmount: amount,
		CreatedAt: time.Now().UTC(),
	})
}

func (m *memoryStore) failMovesFor(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moveErr[userID] = fmt.Errorf("injected move failure for %s", userID)
}

func bucketBalance(p *models.Point, b store.Bucket) int64 {
	switch b {
	case store.BucketAvailable:
		return p.AvailablePoint
	case store.BucketDeposit:
		return p.DepositPoint
	default:
		return p.SettlementPoint
	}
}

func addToBucket(p *models.Point, b store.Bucket, delta int64) {
	switch b {
	case store.BucketAvailable:
		p.AvailablePoint += delta
	case store.BucketDeposit:
		p.DepositPoint += delta
	default:
		p.SettlementPoint += delta
	}
}

// memoryCache implements BalanceCache and counts invalidations so tests
// can assert eviction happened inside the mutation path.
type memoryCache struct {
	mu            sync.Mutex
	entries       map[string]*models.Point
	invalidations int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]*models.Point)}
}

func (c *memoryCache) GetBalance(_ context.Context, userID string) (*models.Point, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[userID]
	if !ok {
		return nil, nil
	}
	return clonePoint(p), nil
}

func (c *memoryCache) SetBalance(_ context.Context, point *models.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[point.UserID] = clonePoint(point)
	return nil
}

func (c *memoryCache) InvalidateBalance(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidations++
	return nil
}

func (c *memoryCache) invalidationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

// newTestPointService wires a PointService onto the in-memory store, cache
// and lock coordinator.
func newTestPointService(db *memoryStore, cache *memoryCache) *PointService {
	return NewPointService(db, db, cache, lock.NewMemoryCoordinator(), 2*time.Second, 5*time.Second)
}
