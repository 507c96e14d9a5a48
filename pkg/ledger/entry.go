package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paystream/paystream/pkg/types"
)

// DisputeState tracks the forward-only dispute lifecycle of a funding
// entry: None is initial, Resolved and ChargedBack are terminal.
type DisputeState uint8

const (
	// DisputeNone means the entry was never disputed.
	DisputeNone DisputeState = iota
	// DisputeInitiated means a dispute was opened and its funds are held.
	DisputeInitiated
	// DisputeResolved means the dispute settled in favor of the merchant.
	DisputeResolved
	// ChargedBack means the dispute settled in favor of the client.
	ChargedBack
)

// FundingType is the kind of processed transaction an entry records.
type FundingType uint8

const (
	FundingDeposit FundingType = iota
	FundingWithdrawal
)

// FundingEntry is an already processed deposit or withdrawal. Type and
// Amount are immutable after creation; only State advances.
type FundingEntry struct {
	Type   FundingType
	Amount types.Amount
	State  DisputeState
}

func newDeposit(amount types.Amount) *FundingEntry {
	return &FundingEntry{Type: FundingDeposit, Amount: amount, State: DisputeNone}
}

func newWithdrawal(amount types.Amount) *FundingEntry {
	return &FundingEntry{Type: FundingWithdrawal, Amount: amount, State: DisputeNone}
}

// entryCodec serializes funding entries for cache spillover.
// Key format: tx id as 4 little-endian bytes.
// Value format: type(1) | state(1) | amountLen(varint) | amount text.
// The amount travels as its decimal text, which round-trips exactly.
type entryCodec struct{}

func (entryCodec) EncodeKey(id types.TxID) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	return buf
}

func (entryCodec) EncodeValue(entry *FundingEntry) ([]byte, error) {
	amount, err := entry.Amount.MarshalText()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 2+binary.MaxVarintLen64+len(amount))
	buf[0] = byte(entry.Type)
	buf[1] = byte(entry.State)
	offset := 2
	offset += binary.PutUvarint(buf[offset:], uint64(len(amount)))
	copy(buf[offset:], amount)
	return buf[:offset+len(amount)], nil
}

func (entryCodec) DecodeValue(data []byte) (*FundingEntry, error) {
	if len(data) < 3 {
		return nil, errors.New("funding entry too short")
	}

	entry := &FundingEntry{
		Type:  FundingType(data[0]),
		State: DisputeState(data[1]),
	}

	amountLen, n := binary.Uvarint(data[2:])
	if n <= 0 {
		return nil, errors.New("invalid amount length varint")
	}
	offset := 2 + n
	if offset+int(amountLen) > len(data) {
		return nil, errors.New("amount length exceeds buffer")
	}

	if err := entry.Amount.UnmarshalText(data[offset : offset+int(amountLen)]); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	return entry, nil
}
