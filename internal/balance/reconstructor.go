// Package balance reconstructs historical ERC-20 balances from the current
// balance and the address's transfer ledger. The explorer APIs only expose
// current token balances, so a past balance is derived by undoing the effect
// of every recorded transfer in the fetched range.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/matrixise/wallet-snapshot/internal/explorer"
	"github.com/shopspring/decimal"
)

// tokenDecimals is the fixed scaling applied to smallest-unit amounts.
// The actual decimals() field of each contract is not consulted, so
// non-18-decimal tokens render at the wrong magnitude. Known limitation.
const tokenDecimals = 18

// Token identifies a discovered token contract and its display symbol
type Token struct {
	Contract string
	Symbol   string
}

// ExplorerAPI is the slice of the explorer client the reconstructor needs
type ExplorerAPI interface {
	TokenBalance(ctx context.Context, contract, address string) (*big.Int, error)
	TokenTransfers(ctx context.Context, address string, startBlock, endBlock uint64, sort string) ([]explorer.TokenTransfer, error)
	InternalTransfers(ctx context.Context, address string, startBlock, endBlock uint64, sort string) ([]explorer.InternalTx, error)
}

// Reconstructor derives historical token balances for wallet addresses
type Reconstructor struct {
	api ExplorerAPI
}

// NewReconstructor creates a reconstructor over an explorer API
func NewReconstructor(api ExplorerAPI) *Reconstructor {
	return &Reconstructor{api: api}
}

// Discover returns the tokens an address has ever transferred, in first-seen
// order with last-write-wins on the symbol. Ordering is deterministic so the
// report output is reproducible.
func (r *Reconstructor) Discover(ctx context.Context, address string) ([]Token, error) {
	transfers, err := r.api.TokenTransfers(ctx, address, 0, explorer.MaxBlock, explorer.SortAsc)
	if err != nil {
		return nil, fmt.Errorf("token discovery for %s: %w", address, err)
	}

	var tokens []Token
	seen := make(map[string]int)
	for _, tx := range transfers {
		if idx, ok := seen[tx.ContractAddress]; ok {
			tokens[idx].Symbol = tx.TokenSymbol
			continue
		}
		seen[tx.ContractAddress] = len(tokens)
		tokens = append(tokens, Token{Contract: tx.ContractAddress, Symbol: tx.TokenSymbol})
	}
	return tokens, nil
}

// At reconstructs the smallest-unit balance of (address, contract) as of the
// target block and returns it scaled to a display amount.
//
// The transfer history is fetched over [0, block] and every matching record
// is undone against the current balance: receiver side subtracts the value,
// sender side adds it back. Reports are only comparable across runs while
// that range stays fixed.
func (r *Reconstructor) At(ctx context.Context, address, contract, symbol string, block uint64) (decimal.Decimal, error) {
	current, err := r.api.TokenBalance(ctx, contract, address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("current balance for %s/%s: %w", contract, address, err)
	}

	tokenTransfers, err := r.api.TokenTransfers(ctx, address, 0, block, explorer.SortDesc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("transfer history for %s: %w", address, err)
	}

	internalTransfers, err := r.api.InternalTransfers(ctx, address, 0, block, explorer.SortDesc)
	if err != nil {
		return decimal.Zero, fmt.Errorf("internal transfer history for %s: %w", address, err)
	}

	reconstructed := new(big.Int).Set(current)

	for _, tx := range tokenTransfers {
		if tx.TokenSymbol != symbol {
			continue
		}
		applyUndo(reconstructed, address, tx.From, tx.To, tx.Value)
	}

	for _, tx := range internalTransfers {
		if !strings.EqualFold(tx.ContractAddress, contract) || tx.Type != "call" {
			continue
		}
		applyUndo(reconstructed, address, tx.From, tx.To, tx.Value)
	}

	return decimal.NewFromBigInt(reconstructed, -tokenDecimals), nil
}

// applyUndo reverses one transfer's effect on the running balance. Address
// comparison is case-insensitive: on-chain addresses have no case, but the
// API compares them as strings.
func applyUndo(balance *big.Int, address, from, to, value string) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		slog.Warn("Skipping transfer with malformed value", "address", address, "value", value)
		return
	}
	switch {
	case strings.EqualFold(to, address):
		balance.Sub(balance, amount)
	case strings.EqualFold(from, address):
		balance.Add(balance, amount)
	}
}
