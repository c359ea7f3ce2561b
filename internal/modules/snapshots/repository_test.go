package snapshots

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aristath/stockfolio/internal/database"
	testingpkg "github.com/aristath/stockfolio/internal/testing"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHistoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := database.Schema("history")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return db
}

func snap(accountID int64, at time.Time, netWorth string) Snapshot {
	return Snapshot{
		AccountID:     accountID,
		TakenAt:       at,
		Cash:          testingpkg.Dec("1000"),
		HoldingsValue: testingpkg.Dec(netWorth).Sub(testingpkg.Dec("1000")),
		NetWorth:      testingpkg.Dec(netWorth),
	}
}

func TestSnapshotRepository_InsertAndList(t *testing.T) {
	repo := NewSnapshotRepository(setupHistoryDB(t), zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)

	first := snap(1, base, "10000")
	first.Positions = []PositionValue{{Symbol: "AAPL", Quantity: 10, Price: "100.01", Value: "1000.1"}}
	_, err := repo.Insert(ctx, first)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, snap(1, base.Add(2*time.Hour), "10200"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, snap(1, base.Add(time.Hour), "10100"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, snap(2, base, "500"))
	require.NoError(t, err)

	all, err := repo.ListByAccount(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "10000", all[0].NetWorth.String())
	assert.Equal(t, "10100", all[1].NetWorth.String())
	assert.Equal(t, "10200", all[2].NetWorth.String())
	assert.True(t, all[0].TakenAt.Equal(base))

	require.Len(t, all[0].Positions, 1)
	assert.Equal(t, PositionValue{Symbol: "AAPL", Quantity: 10, Price: "100.01", Value: "1000.1"}, all[0].Positions[0])
	assert.Empty(t, all[1].Positions)

	recent, err := repo.ListByAccount(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "10100", recent[0].NetWorth.String())
	assert.Equal(t, "10200", recent[1].NetWorth.String())
}

func TestSnapshotRepository_Latest(t *testing.T) {
	repo := NewSnapshotRepository(setupHistoryDB(t), zerolog.Nop())
	ctx := context.Background()

	latest, err := repo.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)
	_, err = repo.Insert(ctx, snap(1, base, "10000"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, snap(1, base.Add(time.Minute), "9000"))
	require.NoError(t, err)

	latest, err = repo.Latest(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "9000", latest.NetWorth.String())
}

func TestSnapshotRepository_DeleteBefore(t *testing.T) {
	repo := NewSnapshotRepository(setupHistoryDB(t), zerolog.Nop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := repo.Insert(ctx, snap(1, base.Add(time.Duration(i)*24*time.Hour), "100"))
		require.NoError(t, err)
	}

	n, err := repo.DeleteBefore(ctx, base.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := repo.ListByAccount(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
