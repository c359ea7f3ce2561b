// Package quotes provides the price sources the trading engine and the
// valuation reporter read from.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/stockfolio/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// IEXClient looks up quotes from the IEX Cloud REST API
type IEXClient struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

var _ domain.QuoteSource = (*IEXClient)(nil)

// NewIEXClient creates a new IEX client. token is the API_KEY.
func NewIEXClient(baseURL, token string, log zerolog.Logger) *IEXClient {
	return &IEXClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "iex").Logger(),
	}
}

type iexQuote struct {
	Symbol      string      `json:"symbol"`
	CompanyName string      `json:"companyName"`
	LatestPrice json.Number `json:"latestPrice"`
}

// Lookup fetches the latest price of symbol
func (c *IEXClient) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/stock/%s/quote?token=%s", c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to build request: %w: %w", domain.ErrQuoteUnavailable, err)
	}

	c.log.Debug().Str("symbol", symbol).Msg("Fetching quote")
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("API request failed: %w: %w", domain.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, domain.ErrSymbolNotFound)
	case resp.StatusCode != http.StatusOK:
		return domain.Quote{}, fmt.Errorf("API returned status %d: %w", resp.StatusCode, domain.ErrQuoteUnavailable)
	}

	var result iexQuote
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Quote{}, fmt.Errorf("failed to parse response: %w: %w", domain.ErrQuoteUnavailable, err)
	}

	price, err := decimal.NewFromString(result.LatestPrice.String())
	if err != nil || !price.IsPositive() {
		return domain.Quote{}, fmt.Errorf("%s has no usable price %q: %w", symbol, result.LatestPrice, domain.ErrSymbolNotFound)
	}

	return domain.Quote{
		Symbol: strings.ToUpper(result.Symbol),
		Name:   result.CompanyName,
		Price:  price,
	}, nil
}
