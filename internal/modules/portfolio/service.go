package portfolio

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ratioPlaces bounds the precision of gain ratios.
const ratioPlaces = 8

// LedgerReader is the read side of the ledger the reporter needs.
type LedgerReader interface {
	TransactionLister
	ReadCashBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}

// ValuedPosition is an open position priced at a fresh quote.
type ValuedPosition struct {
	Position
	Name             string          `json:"name"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	GainRatio        decimal.Decimal `json:"gain_ratio"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
}

// Report is the valuation of an account.
//
// Benefit is the sum of UnrealizedProfit over the priced positions and
// NetWorth is Cash plus Benefit. When Unavailable is non-empty the figures
// cover only the priced positions.
type Report struct {
	AccountID   int64            `json:"account_id"`
	Positions   []ValuedPosition `json:"positions"`
	Cash        decimal.Decimal  `json:"cash"`
	Benefit     decimal.Decimal  `json:"benefit"`
	NetWorth    decimal.Decimal  `json:"net_worth"`
	Unavailable []string         `json:"unavailable,omitempty"`
}

// Partial reports whether some held symbols could not be priced.
func (r Report) Partial() bool {
	return len(r.Unavailable) > 0
}

// PortfolioService is the valuation reporter. It is read-only: it combines
// aggregated positions with quotes fetched for every call.
type PortfolioService struct {
	ledger     LedgerReader
	aggregator *Aggregator
	quotes     domain.QuoteSource
	log        zerolog.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(ledgerReader LedgerReader, quotes domain.QuoteSource, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		ledger:     ledgerReader,
		aggregator: NewAggregator(ledgerReader),
		quotes:     quotes,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// Aggregator returns the position aggregator the service reads through.
func (s *PortfolioService) Aggregator() *Aggregator {
	return s.aggregator
}

// PortfolioReport values every open position at a fresh quote.
//
// If any quote lookup fails the priced part of the report is still returned,
// together with an error wrapping domain.ErrQuoteUnavailable that names the
// symbols left out.
func (s *PortfolioService) PortfolioReport(ctx context.Context, accountID int64) (Report, error) {
	cash, err := s.ledger.ReadCashBalance(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read cash balance: %w", err)
	}
	positions, err := s.aggregator.PositionsFor(ctx, accountID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to aggregate positions: %w", err)
	}

	report := Report{
		AccountID: accountID,
		Positions: make([]ValuedPosition, 0, len(positions)),
		Cash:      cash,
		Benefit:   decimal.Zero,
	}

	for _, p := range positions {
		if !p.Open() {
			continue
		}
		quote, err := s.quotes.Lookup(ctx, p.Symbol)
		if err != nil {
			s.log.Error().Err(err).Int64("account_id", accountID).Str("symbol", p.Symbol).Msg("Quote lookup failed during valuation")
			report.Unavailable = append(report.Unavailable, p.Symbol)
			continue
		}
		vp := Value(p, quote)
		report.Positions = append(report.Positions, vp)
		report.Benefit = report.Benefit.Add(vp.UnrealizedProfit)
	}
	report.NetWorth = report.Cash.Add(report.Benefit)

	if report.Partial() {
		return report, fmt.Errorf("no quote for %s: %w", strings.Join(report.Unavailable, ", "), domain.ErrQuoteUnavailable)
	}
	return report, nil
}

// Value prices one position.
//
// UnrealizedProfit follows basis × ratio + basis over the cost of the shares
// still held, which reduces to quantity × current price. It is computed in
// that closed form so the result is exact.
func Value(p Position, quote domain.Quote) ValuedPosition {
	qty := decimal.NewFromInt(p.Quantity)
	value := quote.Price.Mul(qty)

	ratio := decimal.Zero
	if p.AvgCost.IsPositive() {
		ratio = quote.Price.Sub(p.AvgCost).DivRound(p.AvgCost, ratioPlaces)
	}

	return ValuedPosition{
		Position:         p,
		Name:             quote.Name,
		CurrentPrice:     quote.Price,
		CurrentValue:     value,
		GainRatio:        ratio,
		UnrealizedProfit: value,
	}
}

// TransactionHistory returns every transaction of the account, oldest first.
func (s *PortfolioService) TransactionHistory(ctx context.Context, accountID int64) ([]ledger.Transaction, error) {
	txns, err := s.ledger.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}
