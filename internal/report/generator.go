// Package report drives the wallet×block iteration and writes the CSV output.
package report

import (
	"context"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/matrixise/wallet-snapshot/internal/balance"
	"github.com/shopspring/decimal"
)

const weiDecimals = 18

// BlockDater resolves a block height to its mining time
type BlockDater interface {
	BlockTime(ctx context.Context, block uint64) (time.Time, error)
}

// NativeBalancer fetches the native-asset balance at a historical block
type NativeBalancer interface {
	NativeBalance(ctx context.Context, wallet common.Address, block uint64) (*big.Int, error)
}

// TokenLedger discovers tokens and reconstructs their historical balances
type TokenLedger interface {
	Discover(ctx context.Context, address string) ([]balance.Token, error)
	At(ctx context.Context, address, contract, symbol string, block uint64) (decimal.Decimal, error)
}

// PriceSource resolves a (symbol, date) pair to a daily USD close
type PriceSource interface {
	DailyClose(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, bool, error)
}

// Generator orchestrates one report run. Execution is strictly sequential;
// each fetch already carries the mandatory post-call throttle delay.
type Generator struct {
	wallets  []string
	blocks   []uint64
	excluded map[string]struct{}

	dates  BlockDater
	chain  NativeBalancer
	ledger TokenLedger
	prices PriceSource
}

// NewGenerator creates a report generator. Wallets and blocks are iterated
// in the given order, without deduplication.
func NewGenerator(wallets []string, blocks []uint64, excluded map[string]struct{}, dates BlockDater, chain NativeBalancer, ledger TokenLedger, prices PriceSource) *Generator {
	return &Generator{
		wallets:  wallets,
		blocks:   blocks,
		excluded: excluded,
		dates:    dates,
		chain:    chain,
		ledger:   ledger,
		prices:   prices,
	}
}

// Run produces the full report. Per-call API failures degrade to neutral
// defaults and never abort the run; only write failures and cancellation do.
func (g *Generator) Run(ctx context.Context, w *Writer) error {
	for _, wallet := range g.wallets {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown requested, stopping report")
			return ctx.Err()
		default:
		}

		slog.Info("Processing address", "wallet", wallet)

		for _, block := range g.blocks {
			select {
			case <-ctx.Done():
				slog.Info("Shutdown requested, stopping report")
				return ctx.Err()
			default:
			}

			if err := g.processBlock(ctx, w, wallet, block); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func (g *Generator) processBlock(ctx context.Context, w *Writer, wallet string, block uint64) error {
	date := g.resolveDate(ctx, block)

	// Native asset row, always emitted
	slog.Info("Fetching native balance", "wallet", wallet, "block", block)
	nativeBalance := g.nativeBalance(ctx, wallet, block)
	nativePrice := g.price(ctx, NativeAsset, date)

	if err := w.Write(Row{
		Address:  wallet,
		Block:    block,
		Balance:  nativeBalance,
		Symbol:   NativeAsset,
		Contract: NativeAsset,
		USDValue: nativeBalance.Mul(nativePrice),
	}); err != nil {
		return err
	}

	// Token rows, only for positive reconstructed balances
	tokens, err := g.ledger.Discover(ctx, wallet)
	if err != nil {
		slog.Error("Token discovery failed", "wallet", wallet, "error", err)
		return nil
	}

	for _, token := range tokens {
		if _, excluded := g.excluded[strings.ToLower(token.Contract)]; excluded {
			slog.Info("Skipping excluded token", "symbol", token.Symbol, "contract", token.Contract)
			continue
		}

		slog.Info("Reconstructing token balance", "symbol", token.Symbol, "wallet", wallet, "block", block)
		reconstructed, err := g.ledger.At(ctx, wallet, token.Contract, token.Symbol, block)
		if err != nil {
			slog.Error("Balance reconstruction failed", "symbol", token.Symbol, "wallet", wallet, "block", block, "error", err)
			continue
		}
		if !reconstructed.IsPositive() {
			continue
		}

		price := g.price(ctx, token.Symbol, date)
		if err := w.Write(Row{
			Address:  wallet,
			Block:    block,
			Balance:  reconstructed,
			Symbol:   token.Symbol,
			Contract: token.Contract,
			USDValue: reconstructed.Mul(price),
		}); err != nil {
			return err
		}
	}
	return nil
}

// resolveDate maps a block to the calendar date it was mined. A missing
// timestamp degrades to the epoch date rather than failing the run.
func (g *Generator) resolveDate(ctx context.Context, block uint64) time.Time {
	mined, err := g.dates.BlockTime(ctx, block)
	if err != nil {
		slog.Warn("Block date unavailable, using epoch date", "block", block, "error", err)
		return time.Unix(0, 0).UTC()
	}
	return mined
}

// nativeBalance fetches the wallet's ETH balance at the block, degrading to
// zero on RPC failure
func (g *Generator) nativeBalance(ctx context.Context, wallet string, block uint64) decimal.Decimal {
	wei, err := g.chain.NativeBalance(ctx, common.HexToAddress(wallet), block)
	if err != nil {
		slog.Error("Native balance unavailable, using zero", "wallet", wallet, "block", block, "error", err)
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// price resolves a USD close, degrading to zero when unavailable
func (g *Generator) price(ctx context.Context, symbol string, date time.Time) decimal.Decimal {
	price, ok, err := g.prices.DailyClose(ctx, symbol, date)
	if err != nil {
		slog.Warn("Price lookup failed, using zero", "symbol", symbol, "date", date.Format(time.DateOnly), "error", err)
		return decimal.Zero
	}
	if !ok {
		slog.Warn("Price unavailable, using zero", "symbol", symbol, "date", date.Format(time.DateOnly))
		return decimal.Zero
	}
	return price
}
