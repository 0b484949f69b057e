package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"auctionhouse/internal/models"

	"github.com/lib/pq"
)

type DBStore struct {
	DB *sql.DB
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{DB: db}
}

func ConnectDB(driver, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func RunMigrations(db *sql.DB, migrationsDir string) error {
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not specified")
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, fileName := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationsDir, fileName))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", fileName, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", fileName, err)
		}
	}
	return nil
}

func (s *DBStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *DBStore) CreateAuction(ctx context.Context, auction *models.Auction) (*models.Auction, error) {
	query := `
        INSERT INTO auctions (seller_id, starting_bid, bid_step, status, start_time, end_time)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, version, created_at, updated_at`

	err := s.DB.QueryRowContext(ctx, query,
		auction.SellerID,
		auction.StartingBid,
		auction.BidStep,
		auction.Status,
		auction.StartTime,
		auction.EndTime,
	).Scan(&auction.ID, &auction.Version, &auction.CreatedAt, &auction.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}
	return auction, nil
}

func (s *DBStore) GetAuction(ctx context.Context, auctionID int64) (*models.Auction, error) {
	query := `
        SELECT id, seller_id, starting_bid, bid_step, current_bid, status, winner_id,
               participant_count, start_time, end_time, version, deleted, created_at, updated_at
        FROM auctions
        WHERE id = $1 AND NOT deleted`

	auction := &models.Auction{}
	err := s.DB.QueryRowContext(ctx, query, auctionID).Scan(
		&auction.ID,
		&auction.SellerID,
		&auction.StartingBid,
		&auction.BidStep,
		&auction.CurrentBid,
		&auction.Status,
		&auction.WinnerID,
		&auction.ParticipantCount,
		&auction.StartTime,
		&auction.EndTime,
		&auction.Version,
		&auction.Deleted,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return auction, nil
}

func (s *DBStore) CreateBidAndRaisePrice(ctx context.Context, bid *models.Bid, version int64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var hasPriorBid bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bids WHERE auction_id = $1 AND user_id = $2)`,
		bid.AuctionID, bid.UserID,
	).Scan(&hasPriorBid)
	if err != nil {
		return fmt.Errorf("failed to check prior bids: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO bids (id, auction_id, user_id, bid_amount) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		bid.ID, bid.AuctionID, bid.UserID, bid.BidAmount,
	).Scan(&bid.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	participantInc := 0
	if !hasPriorBid {
		participantInc = 1
	}

	res, err := tx.ExecContext(ctx, `
        UPDATE auctions
        SET current_bid = $1,
            participant_count = participant_count + $2,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $3 AND version = $4 AND status = 'ONGOING' AND NOT deleted`,
		bid.BidAmount, participantInc, bid.AuctionID, version)
	if err != nil {
		return fmt.Errorf("failed to raise current bid: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDBVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *DBStore) TransitionToClosed(ctx context.Context, auctionID int64, status models.AuctionStatus, winnerID *string, winningBid *int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
        UPDATE auctions
        SET status = $2,
            winner_id = $3,
            current_bid = COALESCE($4, current_bid),
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1 AND status = 'ONGOING' AND NOT deleted`,
		auctionID, status, winnerID, winningBid)
	if err != nil {
		return false, fmt.Errorf("failed to transition auction status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *DBStore) MarkDeleted(ctx context.Context, auctionID int64, sellerID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
        UPDATE auctions
        SET status = 'DELETED', deleted = TRUE, version = version + 1, updated_at = NOW()
        WHERE id = $1 AND seller_id = $2 AND status = 'SCHEDULED' AND NOT deleted`,
		auctionID, sellerID)
	if err != nil {
		return false, fmt.Errorf("failed to mark auction deleted: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *DBStore) ActivateDueAuctions(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `
        UPDATE auctions
        SET status = 'ONGOING', version = version + 1, updated_at = NOW()
        WHERE status = 'SCHEDULED' AND NOT deleted AND start_time <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to activate due auctions: %w", err)
	}
	return res.RowsAffected()
}

func (s *DBStore) ListExpiredOngoing(ctx context.Context) ([]int64, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id FROM auctions
        WHERE status = 'ONGOING' AND NOT deleted AND end_time <= NOW()`)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan auction id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *DBStore) GetHighestBid(ctx context.Context, auctionID int64) (*models.Bid, error) {
	query := `
        SELECT id, auction_id, user_id, bid_amount, created_at
        FROM bids
        WHERE auction_id = $1
        ORDER BY bid_amount DESC, created_at ASC
        LIMIT 1`

	bid := &models.Bid{}
	err := s.DB.QueryRowContext(ctx, query, auctionID).Scan(
		&bid.ID, &bid.AuctionID, &bid.UserID, &bid.BidAmount, &bid.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get highest bid: %w", err)
	}
	return bid, nil
}

func (s *DBStore) GetUserHighestBidExcluding(ctx context.Context, auctionID int64, userID, excludeBidID string) (int64, error) {
	var highest int64
	err := s.DB.QueryRowContext(ctx, `
        SELECT COALESCE(MAX(bid_amount), 0)
        FROM bids
        WHERE auction_id = $1 AND user_id = $2 AND id <> $3`,
		auctionID, userID, excludeBidID,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("failed to get user's highest bid: %w", err)
	}
	return highest, nil
}

func (s *DBStore) ListBidderBests(ctx context.Context, auctionID int64) ([]models.BidderBest, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT user_id, MAX(bid_amount)
        FROM bids
        WHERE auction_id = $1
        GROUP BY user_id`,
		auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidder bests: %w", err)
	}
	defer rows.Close()

	var bests []models.BidderBest
	for rows.Next() {
		var b models.BidderBest
		if err := rows.Scan(&b.UserID, &b.HighestBid); err != nil {
			return nil, fmt.Errorf("failed to scan bidder best: %w", err)
		}
		bests = append(bests, b)
	}
	return bests, rows.Err()
}

func (s *DBStore) GetPoint(ctx context.Context, userID string) (*models.Point, error) {
	point := &models.Point{}
	err := s.DB.QueryRowContext(ctx, `
        SELECT user_id, available_point, deposit_point, settlement_point, created_at, updated_at
        FROM points
        WHERE user_id = $1`,
		userID,
	).Scan(
		&point.UserID,
		&point.AvailablePoint,
		&point.DepositPoint,
		&point.SettlementPoint,
		&point.CreatedAt,
		&point.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get point account: %w", err)
	}
	return point, nil
}

func (s *DBStore) CreditEarn(ctx context.Context, userID string, amount int64) (*models.Point, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	point := &models.Point{}
	err = tx.QueryRowContext(ctx, `
        INSERT INTO points (user_id, available_point)
        VALUES ($1, $2)
        ON CONFLICT (user_id)
        DO UPDATE SET available_point = points.available_point + $2, updated_at = NOW()
        RETURNING user_id, available_point, deposit_point, settlement_point, created_at, updated_at`,
		userID, amount,
	).Scan(
		&point.UserID,
		&point.AvailablePoint,
		&point.DepositPoint,
		&point.SettlementPoint,
		&point.CreatedAt,
		&point.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit points: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO point_logs (user_id, type, change, available_point, deposit_point, settlement_point)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, models.LogEarn, amount,
		point.AvailablePoint, point.DepositPoint, point.SettlementPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to append earn log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return point, nil
}

func (s *DBStore) MovePoints(ctx context.Context, userID string, from, to Bucket, amount int64, logType models.PointLogType, auctionID *int64, bidID *string) (*models.Point, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	point := &models.Point{UserID: userID}
	err = tx.QueryRowContext(ctx, `
        SELECT available_point, deposit_point, settlement_point, created_at
        FROM points
        WHERE user_id = $1
        FOR UPDATE`,
		userID,
	).Scan(&point.AvailablePoint, &point.DepositPoint, &point.SettlementPoint, &point.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDBPointNotFound
		}
		return nil, fmt.Errorf("failed to lock point account: %w", err)
	}

	if balanceOf(point, from) < amount {
		return nil, ErrDBInsufficientFunds
	}
	applyDelta(point, from, -amount)
	applyDelta(point, to, amount)

	err = tx.QueryRowContext(ctx, `
        UPDATE points
        SET available_point = $2, deposit_point = $3, settlement_point = $4, updated_at = NOW()
        WHERE user_id = $1
        RETURNING updated_at`,
		userID, point.AvailablePoint, point.DepositPoint, point.SettlementPoint,
	).Scan(&point.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update point account: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO point_logs (user_id, type, change, auction_id, bid_id, available_point, deposit_point, settlement_point)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		userID, logType, amount, auctionID, bidID,
		point.AvailablePoint, point.DepositPoint, point.SettlementPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to append point log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return point, nil
}

func (s *DBStore) HasLogForBid(ctx context.Context, bidID string, types ...models.PointLogType) (bool, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx, `
        SELECT EXISTS (SELECT 1 FROM point_logs WHERE bid_id = $1 AND type = ANY($2))`,
		bidID, pq.Array(typeNames),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bid log: %w", err)
	}
	return exists, nil
}

func (s *DBStore) HasLogForAuctionUser(ctx context.Context, auctionID int64, userID string, logType models.PointLogType) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `
        SELECT EXISTS (SELECT 1 FROM point_logs WHERE auction_id = $1 AND user_id = $2 AND type = $3)`,
		auctionID, userID, logType,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check auction log: %w", err)
	}
	return exists, nil
}

func (s *DBStore) ListLogs(ctx context.Context, userID string) ([]models.PointLog, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, user_id, type, change, auction_id, bid_id,
               available_point, deposit_point, settlement_point, created_at
        FROM point_logs
        WHERE user_id = $1
        ORDER BY created_at ASC, id ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list point logs: %w", err)
	}
	defer rows.Close()

	var logs []models.PointLog
	for rows.Next() {
		var l models.PointLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Type, &l.Change, &l.AuctionID, &l.BidID,
			&l.AvailablePoint, &l.DepositPoint, &l.SettlementPoint, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan point log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func balanceOf(p *models.Point, b Bucket) int64 {
	switch b {
	case BucketAvailable:
		return p.AvailablePoint
	case BucketDeposit:
		return p.DepositPoint
	default:
		return p.SettlementPoint
	}
}

func applyDelta(p *models.Point, b Bucket, delta int64) {
	switch b {
	case BucketAvailable:
		p.AvailablePoint += delta
	case BucketDeposit:
		p.DepositPoint += delta
	default:
		p.SettlementPoint += delta
	}
}
