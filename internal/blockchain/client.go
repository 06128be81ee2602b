package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/matrixise/wallet-snapshot/internal/ratelimit"
)

const rpcTimeout = 10 * time.Second

// Client wraps the node JSON-RPC provider for historical native balances
type Client struct {
	eth     *ethclient.Client
	limiter *ratelimit.Limiter
}

// Dial connects to the JSON-RPC provider
func Dial(rpcURL string, limiter *ratelimit.Limiter) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &Client{eth: eth, limiter: limiter}, nil
}

// Close closes the RPC connection
func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the chain identifier, used as a connectivity probe
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()
	return c.eth.ChainID(ctx)
}

// NativeBalance returns the wei balance of a wallet at an exact historical
// block height. The throttle delay applies after the call, success or not.
func (c *Client) NativeBalance(ctx context.Context, wallet common.Address, block uint64) (*big.Int, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	balance, err := c.eth.BalanceAt(rpcCtx, wallet, new(big.Int).SetUint64(block))
	c.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance at block %d: %w", block, err)
	}
	return balance, nil
}
