package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
)

// NativeAsset is the sentinel used in the ticker and contract columns for
// the chain's base currency row
const NativeAsset = "ETH"

// Row is one line of the balance report
type Row struct {
	Address  string
	Block    uint64
	Balance  decimal.Decimal
	Symbol   string
	Contract string
	USDValue decimal.Decimal
}

var header = []string{"Address", "Block Number", "Balance", "Token Ticker/Name", "Token Contract", "USD Value"}

// Writer emits report rows as CSV
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a CSV report writer and emits the header row
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

// Write appends one row to the report
func (w *Writer) Write(row Row) error {
	record := []string{
		row.Address,
		strconv.FormatUint(row.Block, 10),
		row.Balance.String(),
		row.Symbol,
		row.Contract,
		row.USDValue.String(),
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	return nil
}

// Flush writes buffered rows to the underlying writer
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}
