// Package ledger implements the per-client account state machine: balances,
// the monotonic lock flag and the five transaction operations, backed by a
// bounded transaction cache that serves as the account's funding log.
package ledger

import (
	"fmt"

	"github.com/paystream/paystream/pkg/kvstore"
	"github.com/paystream/paystream/pkg/txcache"
	"github.com/paystream/paystream/pkg/types"
)

// DefaultCacheCapacity bounds the resident funding log entries per account.
const DefaultCacheCapacity = 128

// Account is one client's ledger. It is exclusively owned by a single
// worker; nothing here is safe for concurrent use.
type Account struct {
	client types.ClientID
	// held is the total of funds frozen by open disputes.
	held types.Amount
	// total is held plus available funds; available is derived, never stored.
	total  types.Amount
	locked bool
	log    *txcache.Cache[types.TxID, FundingEntry]
}

// NewAccount creates an account with an empty funding log whose cache
// spills into a store created by opener.
func NewAccount(client types.ClientID, cacheCapacity int, opener kvstore.Opener) (*Account, error) {
	log, err := txcache.New[types.TxID, FundingEntry](cacheCapacity, entryCodec{}, opener)
	if err != nil {
		return nil, fmt.Errorf("create transaction log for client %s: %w", client, err)
	}
	return &Account{client: client, log: log}, nil
}

func (a *Account) Client() types.ClientID { return a.client }
func (a *Account) Held() types.Amount    { return a.held }
func (a *Account) Total() types.Amount   { return a.total }
func (a *Account) Locked() bool          { return a.locked }

// Available is total minus held. It may legitimately be negative after a
// deposit is disputed when its funds were already withdrawn.
func (a *Account) Available() types.Amount {
	available, ok := a.total.CheckedSub(a.held)
	if !ok {
		panic("held amount diverged from total beyond the representable range")
	}
	return available
}

// lock flips the account to locked. The flag is monotonic; nothing ever
// resets it.
func (a *Account) lock() {
	a.locked = true
}

// Deposit credits amount to the account under id.
func (a *Account) Deposit(amount types.Amount, id types.TxID) error {
	if a.locked {
		return ErrAccountLocked
	}

	// never re-play the same transaction twice
	seen, err := a.log.ContainsKey(id)
	if err != nil {
		return err
	}
	if seen {
		return ErrDuplicateTransaction
	}

	// zero amount deposits are just spam
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	total, ok := a.total.CheckedAdd(amount)
	if !ok {
		return ErrDepositLimitReached
	}
	a.total = total
	return a.log.Put(id, newDeposit(amount))
}

// Withdraw debits amount from the account under id. The insufficient-funds
// check deliberately precedes the zero-amount check: a zero withdrawal
// against a negative available balance reports ErrInsufficientFunds.
func (a *Account) Withdraw(amount types.Amount, id types.TxID) error {
	if a.locked {
		return ErrAccountLocked
	}

	seen, err := a.log.ContainsKey(id)
	if err != nil {
		return err
	}
	if seen {
		return ErrDuplicateTransaction
	}

	if a.Available().LessThan(amount) {
		return ErrInsufficientFunds
	}

	if amount.IsZero() {
		return ErrInvalidAmount
	}

	total, ok := a.total.CheckedSub(amount)
	if !ok {
		return ErrInsufficientFunds
	}
	a.total = total
	return a.log.Put(id, newWithdrawal(amount))
}

// Dispute opens a dispute against a previous deposit, moving its amount
// into held. Withdrawals cannot be disputed, which matches how processors
// like Stripe or PayPal handle them.
func (a *Account) Dispute(id types.TxID) error {
	if a.locked {
		return ErrAccountLocked
	}

	entry, found, err := a.log.GetMut(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrTransactionMissing
	}

	if entry.Type == FundingWithdrawal {
		return ErrWithdrawalDisputeNotSupported
	}

	// only the first dispute of an entry is allowed
	if entry.State != DisputeNone {
		return ErrTransactionCannotBeDisputed
	}

	held, ok := a.held.CheckedAdd(entry.Amount)
	if !ok {
		panic("held amount exceeded the deposit limit on total")
	}
	a.held = held
	entry.State = DisputeInitiated
	return nil
}

// Resolve settles a dispute in favor of the merchant, releasing the held
// funds back to available.
func (a *Account) Resolve(id types.TxID) error {
	if a.locked {
		return ErrAccountLocked
	}

	entry, found, err := a.log.GetMut(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrTransactionMissing
	}

	switch entry.State {
	case DisputeNone:
		return ErrTransactionNotDisputed
	case DisputeResolved:
		return ErrDisputeAlreadyResolved
	case ChargedBack:
		return ErrTransactionWasChargedBack
	}

	held, ok := a.held.CheckedSub(entry.Amount)
	if !ok {
		panic("held amount diverged beyond the representable range")
	}
	a.held = held
	entry.State = DisputeResolved
	return nil
}

// Chargeback settles a dispute in favor of the client: the disputed amount
// leaves both held and total, and the account locks irreversibly.
func (a *Account) Chargeback(id types.TxID) error {
	if a.locked {
		return ErrAccountLocked
	}

	entry, found, err := a.log.GetMut(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrTransactionMissing
	}

	switch entry.State {
	case DisputeNone:
		return ErrTransactionNotDisputed
	case DisputeResolved:
		return ErrDisputeAlreadyResolved
	case ChargedBack:
		return ErrTransactionWasChargedBack
	}

	held, ok := a.held.CheckedSub(entry.Amount)
	if !ok {
		panic("held amount diverged beyond the representable range")
	}
	total, ok := a.total.CheckedSub(entry.Amount)
	if !ok {
		panic("total amount diverged beyond the representable range")
	}
	a.held = held
	a.total = total
	entry.State = ChargedBack
	a.lock()
	return nil
}

// Balance is the final output view of an account; Available is computed on
// the fly, never persisted.
type Balance struct {
	Client    types.ClientID
	Available types.Amount
	Held      types.Amount
	Total     types.Amount
	Locked    bool
}

// Balance snapshots the account for output.
func (a *Account) Balance() Balance {
	return Balance{
		Client:    a.client,
		Available: a.Available(),
		Held:      a.held,
		Total:     a.total,
		Locked:    a.locked,
	}
}

// Close tears down the funding log and its backing store.
func (a *Account) Close() error {
	return a.log.Close()
}
