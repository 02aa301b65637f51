// Package marketdata fetches quotes from the Yahoo Finance API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrSymbolNotFound is returned when the provider cannot resolve a symbol
var ErrSymbolNotFound = errors.New("symbol not found")

// Quote is the record returned for a resolved symbol. CurrentPrice is 0
// when no usable price could be determined.
type Quote struct {
	Symbol       string  `json:"symbol"`
	CompanyName  string  `json:"company_name"`
	CurrentPrice float64 `json:"current_price"`
}

// DailyClose is one day of closing price history
type DailyClose struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Client is a Yahoo Finance API client
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://query1.finance.yahoo.com",
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client against a custom endpoint, used in tests
func NewClientWithBaseURL(log zerolog.Logger, baseURL string) *Client {
	c := NewClient(log)
	c.baseURL = baseURL
	return c
}

// GetStockInfo resolves a symbol to a quote.
//
// Price lookup order: regularMarketPrice, then currentPrice, then the most
// recent historical close, then 0 with a logged warning. Name lookup order:
// longName, then shortName, then the symbol itself. When the symbol resolves
// but price extraction fails, a degraded placeholder quote is returned rather
// than an error; ErrSymbolNotFound is returned only when the remote lookup
// itself cannot resolve the symbol.
func (c *Client) GetStockInfo(ctx context.Context, symbol string) (*Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	symbol = strings.ToUpper(symbol)

	info, err := c.getQuoteInfo(ctx, symbol)
	if err != nil {
		if errors.Is(err, ErrSymbolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	price := getFloat64OrZero(info, "regularMarketPrice")
	if price == 0 {
		price = getFloat64OrZero(info, "currentPrice")
	}

	if price == 0 {
		// Fall back on the most recent historical close.
		history, err := c.GetDailyHistory(ctx, symbol, "1mo")
		if err != nil {
			c.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get price history, returning placeholder")
			return &Quote{
				Symbol:       symbol,
				CompanyName:  symbol + " Inc.",
				CurrentPrice: 0.0,
			}, nil
		}
		if len(history) > 0 {
			price = history[len(history)-1].Close
		}
	}

	if price == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("Could not determine price, using 0")
	}

	name := getString(info, "longName", "")
	if name == "" {
		name = getString(info, "shortName", symbol)
	}

	return &Quote{
		Symbol:       symbol,
		CompanyName:  name,
		CurrentPrice: price,
	}, nil
}

// GetDailyHistory fetches daily closing prices for the given range
// (1d, 5d, 1mo, 3mo, 6mo, 1y)
func (c *Client) GetDailyHistory(ctx context.Context, symbol, period string) ([]DailyClose, error) {
	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("range", period)

	reqURL := c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol) + "?" + params.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error any `json:"error"`
		} `json:"chart"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %v", result.Chart.Error)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		c.log.Warn().Str("symbol", symbol).Msg("No historical data returned")
		return nil, nil
	}

	chartData := result.Chart.Result[0]
	closes := chartData.Indicators.Quote[0].Close

	var history []DailyClose
	for i, ts := range chartData.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		history = append(history, DailyClose{
			Date:  time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Close: closes[i],
		})
	}

	return history, nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
		Error  any              `json:"error"`
	} `json:"quoteResponse"`
}

func (c *Client) getQuoteInfo(ctx context.Context, symbol string) (map[string]any, error) {
	params := url.Values{}
	params.Add("symbols", symbol)
	params.Add("fields", "symbol,regularMarketPrice,currentPrice,longName,shortName")

	reqURL := c.baseURL + "/v7/finance/quote?" + params.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var result quoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote API error: %v", result.QuoteResponse.Error)
	}

	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}

	return result.QuoteResponse.Result[0], nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Helpers to safely extract values from the quote map

func getFloat64OrZero(m map[string]any, key string) float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return v
		case int:
			return float64(v)
		}
	}
	return 0
}

func getString(m map[string]any, key string, defaultVal string) string {
	if val, ok := m[key]; ok && val != nil {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}
