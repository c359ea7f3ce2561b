package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
)

// SnapshotRepository stores snapshots in history.db
type SnapshotRepository struct {
	historyDB *sql.DB
	log       zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(historyDB *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		historyDB: historyDB,
		log:       log.With().Str("repo", "snapshots").Logger(),
	}
}

// Insert stores s and returns its id
func (r *SnapshotRepository) Insert(ctx context.Context, s Snapshot) (int64, error) {
	blob, err := encodePositions(s.Positions)
	if err != nil {
		return 0, err
	}

	result, err := r.historyDB.ExecContext(ctx,
		`INSERT INTO net_worth_snapshots (account_id, taken_at, cash, holdings_value, net_worth, positions)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.AccountID, s.TakenAt.UnixNano(), s.Cash.String(), s.HoldingsValue.String(), s.NetWorth.String(), blob,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return result.LastInsertId()
}

// ListByAccount returns the most recent limit snapshots of an account, oldest
// first. limit <= 0 returns all of them.
func (r *SnapshotRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]Snapshot, error) {
	query := `SELECT id, account_id, taken_at, cash, holdings_value, net_worth, positions
		FROM net_worth_snapshots WHERE account_id = ?
		ORDER BY taken_at DESC, id DESC`
	args := []interface{}{accountID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.historyDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w: %w", domain.ErrStoreUnavailable, err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w: %w", domain.ErrStoreUnavailable, err)
	}

	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

// Latest returns the newest snapshot of an account, or nil when none exists
func (r *SnapshotRepository) Latest(ctx context.Context, accountID int64) (*Snapshot, error) {
	row := r.historyDB.QueryRowContext(ctx,
		`SELECT id, account_id, taken_at, cash, holdings_value, net_worth, positions
		 FROM net_worth_snapshots WHERE account_id = ?
		 ORDER BY taken_at DESC, id DESC LIMIT 1`, accountID)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return &s, nil
}

// DeleteBefore removes snapshots taken before cutoff
func (r *SnapshotRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.historyDB.ExecContext(ctx,
		`DELETE FROM net_worth_snapshots WHERE taken_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w: %w", domain.ErrStoreUnavailable, err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned old snapshots")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var s Snapshot
	var takenAt int64
	var cash, holdings, netWorth string
	var blob []byte

	if err := row.Scan(&s.ID, &s.AccountID, &takenAt, &cash, &holdings, &netWorth, &blob); err != nil {
		return s, err
	}

	var err error
	if s.Cash, err = domain.ParseMoney(cash); err != nil {
		return s, fmt.Errorf("snapshot %d cash: %w", s.ID, err)
	}
	if s.HoldingsValue, err = domain.ParseMoney(holdings); err != nil {
		return s, fmt.Errorf("snapshot %d holdings: %w", s.ID, err)
	}
	if s.NetWorth, err = domain.ParseMoney(netWorth); err != nil {
		return s, fmt.Errorf("snapshot %d net worth: %w", s.ID, err)
	}
	if s.Positions, err = decodePositions(blob); err != nil {
		return s, fmt.Errorf("snapshot %d: %w", s.ID, err)
	}
	s.TakenAt = time.Unix(0, takenAt)
	return s, nil
}
