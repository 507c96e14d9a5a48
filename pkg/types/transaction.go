// Package types holds the identifiers and value types shared by the
// payments engine: client and transaction ids, fixed-point amounts and the
// parsed transaction record itself.
package types

import "fmt"

// ClientID identifies an account owner. Equality and hashing only; no
// ordering semantics are attached to the numeric value.
type ClientID uint16

// TxID identifies a transaction, unique across the whole input stream.
type TxID uint32

func (c ClientID) String() string { return fmt.Sprintf("%d", uint16(c)) }
func (t TxID) String() string     { return fmt.Sprintf("%d", uint32(t)) }

// TxType is the operation carried by an input record.
type TxType uint8

const (
	TxDeposit TxType = iota
	TxWithdrawal
	TxDispute
	TxResolve
	TxChargeback
)

func (t TxType) String() string {
	switch t {
	case TxDeposit:
		return "deposit"
	case TxWithdrawal:
		return "withdrawal"
	case TxDispute:
		return "dispute"
	case TxResolve:
		return "resolve"
	case TxChargeback:
		return "chargeback"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// ParseTxType maps an input token to its TxType.
func ParseTxType(s string) (TxType, error) {
	switch s {
	case "deposit":
		return TxDeposit, nil
	case "withdrawal":
		return TxWithdrawal, nil
	case "dispute":
		return TxDispute, nil
	case "resolve":
		return TxResolve, nil
	case "chargeback":
		return TxChargeback, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", s)
	}
}

// Transaction is one parsed input record. Amount is only meaningful when
// HasAmount is set, which the parser guarantees for deposits and
// withdrawals.
type Transaction struct {
	Type      TxType
	Client    ClientID
	ID        TxID
	Amount    Amount
	HasAmount bool
}
