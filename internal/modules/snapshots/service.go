package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Window bounds for the moving average of net worth
const (
	DefaultWindow = 5
	MaxWindow     = 365
)

// AccountLister lists every account to snapshot
type AccountLister interface {
	ListAccountIDs(ctx context.Context) ([]int64, error)
}

// Reporter values an account
type Reporter interface {
	PortfolioReport(ctx context.Context, accountID int64) (portfolio.Report, error)
}

// Performance summarizes the snapshot series of an account.
type Performance struct {
	AccountID    int64     `json:"account_id"`
	Count        int       `json:"count"`
	Latest       *Snapshot `json:"latest,omitempty"`
	MeanReturn   float64   `json:"mean_return"`
	StdDevReturn float64   `json:"stddev_return"`
	Window       int       `json:"window"`
	// MovingAverage is the simple moving average of net worth over the last
	// Window snapshots; nil until that many exist.
	MovingAverage *float64 `json:"moving_average,omitempty"`
}

// SnapshotService takes and analyses net worth snapshots
type SnapshotService struct {
	accounts     AccountLister
	reporter     Reporter
	repo         *SnapshotRepository
	eventManager *events.Manager
	now          func() time.Time
	log          zerolog.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(accounts AccountLister, reporter Reporter, repo *SnapshotRepository, eventManager *events.Manager, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		accounts:     accounts,
		reporter:     reporter,
		repo:         repo,
		eventManager: eventManager,
		now:          time.Now,
		log:          log.With().Str("service", "snapshots").Logger(),
	}
}

// TakeSnapshot values one account and stores the result. Accounts whose
// report is missing quotes are not recorded.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, accountID int64) (Snapshot, error) {
	report, err := s.reporter.PortfolioReport(ctx, accountID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("account %d: %w", accountID, err)
	}

	snap := Snapshot{
		AccountID:     accountID,
		TakenAt:       s.now(),
		Cash:          report.Cash,
		HoldingsValue: decimal.Zero,
		NetWorth:      report.NetWorth,
		Positions:     make([]PositionValue, 0, len(report.Positions)),
	}
	for _, p := range report.Positions {
		snap.HoldingsValue = snap.HoldingsValue.Add(p.CurrentValue)
		snap.Positions = append(snap.Positions, PositionValue{
			Symbol:   p.Symbol,
			Quantity: p.Quantity,
			Price:    p.CurrentPrice.String(),
			Value:    p.CurrentValue.String(),
		})
	}

	if snap.ID, err = s.repo.Insert(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// TakeAll snapshots every account. A failing account is logged and counted;
// only failing to list accounts is an error.
func (s *SnapshotService) TakeAll(ctx context.Context) (events.SnapshotTakenData, error) {
	ids, err := s.accounts.ListAccountIDs(ctx)
	if err != nil {
		return events.SnapshotTakenData{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	var result events.SnapshotTakenData
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := s.TakeSnapshot(ctx, id); err != nil {
			result.Failed++
			s.log.Warn().Err(err).Int64("account_id", id).Msg("Snapshot skipped")
			continue
		}
		result.Accounts++
	}

	s.log.Info().Int("accounts", result.Accounts).Int("failed", result.Failed).Msg("Snapshots taken")
	s.eventManager.EmitTyped("snapshots", &result)
	return result, nil
}

// Snapshots returns the last limit snapshots of an account, oldest first
func (s *SnapshotService) Snapshots(ctx context.Context, accountID int64, limit int) ([]Snapshot, error) {
	return s.repo.ListByAccount(ctx, accountID, limit)
}

// Performance computes return statistics over all snapshots of an account.
func (s *SnapshotService) Performance(ctx context.Context, accountID int64, window int) (Performance, error) {
	if window == 0 {
		window = DefaultWindow
	}
	if window < 2 || window > MaxWindow {
		return Performance{}, fmt.Errorf("window must be between 2 and %d: %w", MaxWindow, domain.ErrInvalidInput)
	}

	series, err := s.repo.ListByAccount(ctx, accountID, 0)
	if err != nil {
		return Performance{}, err
	}

	perf := Performance{AccountID: accountID, Count: len(series), Window: window}
	if len(series) == 0 {
		return perf, nil
	}
	latest := series[len(series)-1]
	perf.Latest = &latest

	values := make([]float64, len(series))
	for i, snap := range series {
		values[i] = snap.NetWorth.InexactFloat64()
	}

	returns := Returns(values)
	if len(returns) > 0 {
		perf.MeanReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		perf.StdDevReturn = stat.StdDev(returns, nil)
	}
	if len(values) >= window {
		sma := talib.Sma(values, window)
		last := sma[len(sma)-1]
		perf.MovingAverage = &last
	}
	return perf, nil
}

// Returns converts a value series to period-over-period returns. Periods
// starting from zero are skipped.
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}
