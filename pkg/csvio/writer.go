package csvio

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/paystream/paystream/pkg/ledger"
)

// Writer renders final account balances as CSV. Amounts print with
// insignificant trailing zeros stripped and available is the computed
// value, not a persisted field.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteBalances writes the header plus one row per account, sorted by
// client id for stable output.
func (w *Writer) WriteBalances(balances []ledger.Balance) error {
	sort.Slice(balances, func(i, j int) bool {
		return balances[i].Client < balances[j].Client
	})

	if err := w.csv.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return err
	}
	for _, b := range balances {
		row := []string{
			b.Client.String(),
			b.Available.String(),
			b.Held.String(),
			b.Total.String(),
			strconv.FormatBool(b.Locked),
		}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	w.csv.Flush()
	return w.csv.Error()
}
