package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/paystream/paystream/pkg/kvstore"
	"github.com/paystream/paystream/pkg/ledger"
	"github.com/paystream/paystream/pkg/types"
)

// message is the mailbox payload: a transaction to process, or the
// shutdown sentinel issued only after all transactions have been queued.
type message struct {
	tx       types.Transaction
	shutdown bool
}

// worker drains its mailbox strictly in order, fully completing one
// transaction's effect before starting the next. It privately owns every
// account routed to it.
type worker struct {
	id            int
	mailbox       chan message
	done          chan struct{}
	accounts      map[types.ClientID]*ledger.Account
	cacheCapacity int
	opener        kvstore.Opener
	logger        *slog.Logger

	// fatal records the environment failure that stopped this worker, if any.
	fatal error
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(w.done)

	for msg := range w.mailbox {
		if msg.shutdown {
			return
		}
		if err := w.process(msg.tx); err != nil {
			if w.fatal != nil {
				return
			}
			// account-level errors are local to the one offending
			// transaction; the run continues unaffected
			w.logger.Warn("transaction rejected",
				"client", msg.tx.Client,
				"tx", msg.tx.ID,
				"type", msg.tx.Type.String(),
				"error", err)
		}
	}
}

func (w *worker) process(tx types.Transaction) error {
	account, ok := w.accounts[tx.Client]
	if !ok {
		created, err := ledger.NewAccount(tx.Client, w.cacheCapacity, w.opener)
		if err != nil {
			// a store that cannot be created means the environment is
			// unusable; escalate instead of skipping
			w.fatal = err
			return err
		}
		w.accounts[tx.Client] = created
		account = created
	}

	switch tx.Type {
	case types.TxDeposit:
		if !tx.HasAmount {
			return fmt.Errorf("deposit %s is missing an amount", tx.ID)
		}
		return account.Deposit(tx.Amount, tx.ID)
	case types.TxWithdrawal:
		if !tx.HasAmount {
			return fmt.Errorf("withdrawal %s is missing an amount", tx.ID)
		}
		return account.Withdraw(tx.Amount, tx.ID)
	case types.TxDispute:
		return account.Dispute(tx.ID)
	case types.TxResolve:
		return account.Resolve(tx.ID)
	case types.TxChargeback:
		return account.Chargeback(tx.ID)
	default:
		return fmt.Errorf("unknown transaction type %d", tx.Type)
	}
}
