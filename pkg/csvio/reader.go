// Package csvio parses the transaction input stream and renders the final
// account balances, keeping all record-format concerns out of the core
// engine. Amount validation happens here at the boundary: negative values
// are parse errors and extra fractional digits are truncated toward zero,
// so the core only ever sees normalized amounts.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paystream/paystream/pkg/types"
)

// Reader decodes transaction records from CSV input. Inputs with or
// without a leading header row are both accepted, and whitespace around
// fields is ignored.
type Reader struct {
	csv         *csv.Reader
	sniffHeader bool
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	// rows carry 3 fields for dispute/resolve/chargeback and 4 otherwise
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &Reader{csv: cr, sniffHeader: true}
}

// Read returns the next transaction. Malformed rows return an error that
// the caller reports and skips; io.EOF signals the end of input.
func (r *Reader) Read() (types.Transaction, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			return types.Transaction{}, err
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		if r.sniffHeader {
			r.sniffHeader = false
			if isHeader(record) {
				continue
			}
		}

		return parseRecord(record)
	}
}

func isHeader(record []string) bool {
	return len(record) == 4 &&
		record[0] == "type" &&
		record[1] == "client" &&
		record[2] == "tx" &&
		record[3] == "amount"
}

func parseRecord(record []string) (types.Transaction, error) {
	if len(record) < 3 {
		return types.Transaction{}, fmt.Errorf("record has %d fields, want at least 3", len(record))
	}

	txType, err := types.ParseTxType(record[0])
	if err != nil {
		return types.Transaction{}, err
	}

	client, err := strconv.ParseUint(record[1], 10, 16)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("parse client id %q: %w", record[1], err)
	}

	id, err := strconv.ParseUint(record[2], 10, 32)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("parse transaction id %q: %w", record[2], err)
	}

	tx := types.Transaction{
		Type:   txType,
		Client: types.ClientID(client),
		ID:     types.TxID(id),
	}

	if len(record) >= 4 && record[3] != "" {
		amount, err := types.ParseAmount(record[3])
		if err != nil {
			return types.Transaction{}, err
		}
		tx.Amount = amount
		tx.HasAmount = true
	}

	if (txType == types.TxDeposit || txType == types.TxWithdrawal) && !tx.HasAmount {
		return types.Transaction{}, fmt.Errorf("%s record for tx %d is missing an amount", txType, id)
	}

	return tx, nil
}
