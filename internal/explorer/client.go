// Package explorer wraps the Etherscan-style block explorer HTTP API.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matrixise/wallet-snapshot/internal/ratelimit"
)

const requestTimeout = 10 * time.Second

// Sort orders accepted by the transfer-history endpoints
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// MaxBlock is the open-ended endblock used for full-history queries
const MaxBlock uint64 = 99999999

// Client queries the block explorer API. Every request is followed by the
// rate limiter's fixed delay, regardless of outcome.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates an explorer API client
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

// envelope is the common explorer response wrapper. The result type varies
// per endpoint: object for block metadata, array for transfer lists, and a
// bare numeric string for balances.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// get performs a throttled GET and decodes the response envelope
func (c *Client) get(ctx context.Context, params url.Values) (*envelope, error) {
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	c.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("explorer returned HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode explorer response: %w", err)
	}
	return &env, nil
}

// BlockTime returns the UTC mining timestamp of a block. A missing or zero
// timestamp is an error; callers degrade to the epoch date.
func (c *Client) BlockTime(ctx context.Context, block uint64) (time.Time, error) {
	params := url.Values{}
	params.Set("module", "block")
	params.Set("action", "getblockreward")
	params.Set("blockno", strconv.FormatUint(block, 10))

	env, err := c.get(ctx, params)
	if err != nil {
		return time.Time{}, err
	}

	var result struct {
		TimeStamp string `json:"timeStamp"`
	}
	if err := json.Unmarshal(env.Result, &result); err != nil {
		return time.Time{}, fmt.Errorf("unexpected block metadata for block %d: %w", block, err)
	}

	ts, err := strconv.ParseInt(result.TimeStamp, 10, 64)
	if err != nil || ts == 0 {
		return time.Time{}, fmt.Errorf("no timestamp for block %d", block)
	}
	return time.Unix(ts, 0).UTC(), nil
}

// TokenTransfers returns the ERC-20 transfer history for an address within
// [startBlock, endBlock]. A single page only; histories beyond one page are
// truncated by the API.
func (c *Client) TokenTransfers(ctx context.Context, address string, startBlock, endBlock uint64, sort string) ([]TokenTransfer, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", sort)

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var transfers []TokenTransfer
	if err := decodeList(env, &transfers); err != nil {
		return nil, fmt.Errorf("token transfers for %s: %w", address, err)
	}
	return transfers, nil
}

// InternalTransfers returns the internal transaction history for an address
// within [startBlock, endBlock]
func (c *Client) InternalTransfers(ctx context.Context, address string, startBlock, endBlock uint64, sort string) ([]InternalTx, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlistinternal")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", sort)

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var transfers []InternalTx
	if err := decodeList(env, &transfers); err != nil {
		return nil, fmt.Errorf("internal transfers for %s: %w", address, err)
	}
	return transfers, nil
}

// TokenBalance returns the current smallest-unit balance of a token contract
// for an address (tag=latest)
func (c *Client) TokenBalance(ctx context.Context, contract, address string) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokenbalance")
	params.Set("contractaddress", contract)
	params.Set("address", address)
	params.Set("tag", "latest")

	env, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var raw string
	if err := json.Unmarshal(env.Result, &raw); err != nil {
		return nil, fmt.Errorf("unexpected balance result for %s/%s: %w", contract, address, err)
	}
	balance, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q for %s/%s", raw, contract, address)
	}
	return balance, nil
}

// decodeList decodes an array result. The API reports an empty history as
// status 0 with "No transactions found", which is not an error.
func decodeList(env *envelope, out any) error {
	if err := json.Unmarshal(env.Result, out); err != nil {
		if env.Status != "1" {
			return fmt.Errorf("explorer error: %s", env.Message)
		}
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
