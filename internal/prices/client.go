// Package prices resolves historical daily USD close prices.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matrixise/wallet-snapshot/internal/ratelimit"
	"github.com/shopspring/decimal"
)

const requestTimeout = 10 * time.Second

// Client queries the CryptoCompare histoday API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a price API client
func NewClient(baseURL, apiKey string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: limiter,
	}
}

type histodayResponse struct {
	Response string `json:"Response"`
	Data     struct {
		Data []struct {
			Time  int64   `json:"time"`
			Close float64 `json:"close"`
		} `json:"Data"`
	} `json:"Data"`
}

// DailyClose returns the USD daily close for a symbol at or before the given
// date. The date's midnight is interpreted in local time. ok is false when
// the API errors, returns no data, or does not know the symbol; callers map
// that to a zero USD value.
func (c *Client) DailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, bool, error) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)

	params := url.Values{}
	params.Set("fsym", symbol)
	params.Set("tsym", "USD")
	params.Set("limit", "1")
	params.Set("toTs", strconv.FormatInt(midnight.Unix(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Apikey "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	c.limiter.Wait(ctx)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return decimal.Zero, false, fmt.Errorf("price API returned HTTP %d", resp.StatusCode)
	}

	var payload histodayResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to decode price response: %w", err)
	}

	if payload.Response != "Success" || len(payload.Data.Data) == 0 {
		return decimal.Zero, false, nil
	}
	return decimal.NewFromFloat(payload.Data.Data[0].Close), true, nil
}
