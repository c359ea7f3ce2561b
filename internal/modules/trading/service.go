// Package trading applies buy and sell orders to the ledger.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/aristath/stockfolio/internal/events"
	"github.com/aristath/stockfolio/internal/modules/ledger"
	"github.com/aristath/stockfolio/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TradeResult is the outcome of a committed order.
type TradeResult struct {
	Transaction ledger.Transaction `json:"transaction"`
	Cash        decimal.Decimal    `json:"cash"`
}

// TradingService is the trading engine.
//
// Every order is checked and applied inside one ledger unit of work while the
// account lock is held, so two orders on the same account never both pass
// the funds or holdings check against the same state. The quote is fetched
// before the lock is taken.
type TradingService struct {
	store        ledger.Store
	quotes       domain.QuoteSource
	locker       AccountLocker
	eventManager *events.Manager
	now          func() time.Time
	log          zerolog.Logger
}

// NewTradingService creates a new trading service. eventManager may be nil.
func NewTradingService(
	store ledger.Store,
	quotes domain.QuoteSource,
	locker AccountLocker,
	eventManager *events.Manager,
	log zerolog.Logger,
) *TradingService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &TradingService{
		store:        store,
		quotes:       quotes,
		locker:       locker,
		eventManager: eventManager,
		now:          time.Now,
		log:          log.With().Str("service", "trading").Logger(),
	}
}

// Quote looks up the current price of symbol.
func (s *TradingService) Quote(ctx context.Context, rawSymbol string) (domain.Quote, error) {
	symbol, err := ParseSymbol(rawSymbol)
	if err != nil {
		return domain.Quote{}, err
	}
	return s.lookup(ctx, symbol)
}

// Buy purchases quantity shares of symbol at the current quote and returns
// the new cash balance.
func (s *TradingService) Buy(ctx context.Context, accountID int64, rawSymbol, rawQuantity string) (TradeResult, error) {
	symbol, qty, err := s.parseOrder(accountID, ledger.TradeSideBuy, rawSymbol, rawQuantity)
	if err != nil {
		return TradeResult{}, err
	}
	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return TradeResult{}, err
	}

	return s.apply(ctx, accountID, ledger.NewTransaction(accountID, symbol, qty, quote.Price, s.now()),
		func(cash decimal.Decimal, _ []ledger.Transaction, txn ledger.Transaction) error {
			if cash.Sub(txn.Total).IsNegative() {
				return fmt.Errorf("cost %s exceeds cash %s: %w", txn.Total, cash, domain.ErrInsufficientFunds)
			}
			return nil
		})
}

// Sell sells quantity shares of symbol at the current quote and returns the
// new cash balance. The account must hold a positive quantity of at least
// the requested size.
func (s *TradingService) Sell(ctx context.Context, accountID int64, rawSymbol, rawQuantity string) (TradeResult, error) {
	symbol, qty, err := s.parseOrder(accountID, ledger.TradeSideSell, rawSymbol, rawQuantity)
	if err != nil {
		return TradeResult{}, err
	}
	quote, err := s.lookup(ctx, symbol)
	if err != nil {
		return TradeResult{}, err
	}

	return s.apply(ctx, accountID, ledger.NewTransaction(accountID, symbol, -qty, quote.Price, s.now()),
		func(_ decimal.Decimal, history []ledger.Transaction, txn ledger.Transaction) error {
			held := portfolio.HeldQuantity(history, symbol)
			if held <= 0 || held < qty {
				return fmt.Errorf("holding %d %s, cannot sell %d: %w", held, symbol, qty, domain.ErrInsufficientHoldings)
			}
			return nil
		})
}

func (s *TradingService) parseOrder(accountID int64, side ledger.TradeSide, rawSymbol, rawQuantity string) (string, int64, error) {
	symbol, err := ParseSymbol(rawSymbol)
	if err == nil {
		var qty int64
		if qty, err = ParseQuantity(rawQuantity); err == nil {
			return symbol, qty, nil
		}
	}
	s.log.Warn().Err(err).
		Int64("account_id", accountID).
		Str("side", string(side)).
		Str("symbol", rawSymbol).
		Str("quantity", rawQuantity).
		Msg("Rejected order input")
	return "", 0, err
}

// lookup resolves a quote. Any failure is reported as domain.ErrSymbolNotFound.
func (s *TradingService) lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote lookup failed")
		return domain.Quote{}, fmt.Errorf("lookup %s: %w", symbol, wrapNotFound(err))
	}
	if !quote.Price.IsPositive() {
		return domain.Quote{}, fmt.Errorf("lookup %s: non-positive price %s: %w", symbol, quote.Price, domain.ErrSymbolNotFound)
	}
	quote.Symbol = symbol
	return quote, nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, domain.ErrSymbolNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSymbolNotFound, err)
}

// check validates a staged transaction against the locked account state.
type check func(cash decimal.Decimal, history []ledger.Transaction, txn ledger.Transaction) error

func (s *TradingService) apply(ctx context.Context, accountID int64, txn ledger.Transaction, validate check) (TradeResult, error) {
	unlock, err := s.locker.Lock(ctx, accountID)
	if err != nil {
		return TradeResult{}, fmt.Errorf("lock account %d: %w: %w", accountID, domain.ErrStoreUnavailable, err)
	}
	defer unlock()

	var result TradeResult
	err = s.store.InTx(ctx, accountID, func(tx ledger.Tx) error {
		cash, err := tx.ReadCashBalance(ctx)
		if err != nil {
			return err
		}
		history, err := tx.ListTransactions(ctx)
		if err != nil {
			return err
		}
		if err := validate(cash, history, txn); err != nil {
			return err
		}

		stored, err := tx.AppendTransaction(ctx, txn)
		if err != nil {
			return err
		}
		newCash := cash.Sub(stored.Total)
		if err := tx.WriteCashBalance(ctx, newCash); err != nil {
			return err
		}
		result = TradeResult{Transaction: stored, Cash: newCash}
		return nil
	})
	if err != nil {
		s.logFailure(accountID, txn, err)
		return TradeResult{}, err
	}

	s.log.Info().
		Int64("account_id", accountID).
		Str("side", string(result.Transaction.Side())).
		Str("symbol", result.Transaction.Symbol).
		Int64("quantity", result.Transaction.Quantity).
		Str("price", result.Transaction.Price.String()).
		Str("cash", result.Cash.String()).
		Msg("Trade executed")

	s.emit(result)
	return result, nil
}

func (s *TradingService) logFailure(accountID int64, txn ledger.Transaction, err error) {
	event := s.log.Warn()
	if errors.Is(err, domain.ErrStoreUnavailable) {
		event = s.log.Error()
	}
	event.Err(err).
		Int64("account_id", accountID).
		Str("side", string(txn.Side())).
		Str("symbol", txn.Symbol).
		Int64("quantity", txn.Quantity).
		Msg("Trade rejected")
}

func (s *TradingService) emit(result TradeResult) {
	if s.eventManager == nil {
		return
	}
	txn := result.Transaction
	s.eventManager.EmitTyped("trading", &events.TradeExecutedData{
		AccountID:     txn.AccountID,
		TransactionID: txn.ID,
		Symbol:        txn.Symbol,
		Side:          string(txn.Side()),
		Quantity:      txn.Quantity,
		Price:         txn.Price.String(),
		Total:         txn.Total.String(),
	})
	s.eventManager.EmitTyped("trading", &events.CashUpdatedData{
		AccountID: txn.AccountID,
		Cash:      result.Cash.String(),
	})
}
