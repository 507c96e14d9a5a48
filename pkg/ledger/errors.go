package ledger

import "errors"

// Account operation failures form a closed set; callers branch on the
// specific sentinel to decide between reporting and no-op handling.
var (
	ErrAccountLocked                 = errors.New("account is locked, no transaction can be performed")
	ErrInsufficientFunds             = errors.New("account has insufficient funds to satisfy this transaction")
	ErrDepositLimitReached           = errors.New("cannot deposit because the limit was reached")
	ErrTransactionMissing            = errors.New("there is no transaction matching this id")
	ErrTransactionCannotBeDisputed   = errors.New("this transaction can no longer be disputed")
	ErrWithdrawalDisputeNotSupported = errors.New("withdrawal disputes are not supported")
	ErrTransactionNotDisputed        = errors.New("transaction is not disputed")
	ErrDisputeAlreadyResolved        = errors.New("dispute was already resolved")
	ErrTransactionWasChargedBack     = errors.New("dispute was already resolved through chargeback")
	ErrDuplicateTransaction          = errors.New("this transaction already exists")
	ErrInvalidAmount                 = errors.New("specified amount is invalid")
)
