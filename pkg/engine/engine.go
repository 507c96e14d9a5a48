// Package engine partitions the account universe across parallel workers
// while guaranteeing per-account sequential consistency. A deterministic
// hash over the client id pins every client to exactly one worker for the
// whole run, so account state is never shared and never locked; the only
// synchronized resource is each worker's mailbox.
package engine

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"sync"

	"github.com/twmb/murmur3"

	"github.com/paystream/paystream/pkg/kvstore"
	"github.com/paystream/paystream/pkg/ledger"
	"github.com/paystream/paystream/pkg/types"
)

const (
	// DefaultWorkers is the number of parallel workers.
	DefaultWorkers = 4
	// DefaultMailboxSize bounds each worker's queue; a full mailbox blocks
	// the dispatcher and throttles ingestion to worker throughput.
	DefaultMailboxSize = 1024
)

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of workers.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.numWorkers = n
		}
	}
}

// WithMailboxSize sets the capacity of each worker mailbox.
func WithMailboxSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mailboxSize = n
		}
	}
}

// WithCacheCapacity sets the resident entry bound of each account's
// transaction cache.
func WithCacheCapacity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheCapacity = n
		}
	}
}

// WithStoreOpener overrides the backing store engine accounts spill into.
func WithStoreOpener(opener kvstore.Opener) Option {
	return func(e *Engine) {
		if opener != nil {
			e.opener = opener
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine owns the worker pool and routes transactions to it.
type Engine struct {
	numWorkers    int
	mailboxSize   int
	cacheCapacity int
	opener        kvstore.Opener
	logger        *slog.Logger

	workers []*worker
	wg      sync.WaitGroup
}

// New creates an engine. Call Start before dispatching.
func New(opts ...Option) *Engine {
	e := &Engine{
		numWorkers:    DefaultWorkers,
		mailboxSize:   DefaultMailboxSize,
		cacheCapacity: ledger.DefaultCacheCapacity,
		opener:        kvstore.OpenBolt,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start spawns the workers.
func (e *Engine) Start() {
	e.workers = make([]*worker, e.numWorkers)
	for i := range e.workers {
		w := &worker{
			id:            i,
			mailbox:       make(chan message, e.mailboxSize),
			done:          make(chan struct{}),
			accounts:      make(map[types.ClientID]*ledger.Account),
			cacheCapacity: e.cacheCapacity,
			opener:        e.opener,
			logger:        e.logger.With("component", "worker", "worker_id", i),
		}
		e.workers[i] = w
		e.wg.Add(1)
		go w.run(&e.wg)
	}
}

// route maps a client to its worker. The hash is computed identically for
// every transaction of the client throughout the run, so one worker
// exclusively owns that client's account.
func (e *Engine) route(client types.ClientID) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(client))
	return int(murmur3.Sum32(buf[:]) % uint32(e.numWorkers))
}

// Dispatch forwards a parsed transaction to its worker's mailbox, blocking
// while the mailbox is full. If the worker has terminated the transaction
// is dropped with a diagnostic and the run continues.
func (e *Engine) Dispatch(tx types.Transaction) {
	w := e.workers[e.route(tx.Client)]
	select {
	case w.mailbox <- message{tx: tx}:
	case <-w.done:
		e.logger.Error("worker unavailable, transaction dropped",
			"worker_id", w.id,
			"client", tx.Client,
			"tx", tx.ID)
	}
}

// Shutdown sends the shutdown sentinel to every worker, waits for each to
// drain its queued work, and aggregates the final account balances. The
// returned error is non-nil only for fatal failures such as a backing
// store that could not be created.
func (e *Engine) Shutdown() ([]ledger.Balance, error) {
	for _, w := range e.workers {
		select {
		case w.mailbox <- message{shutdown: true}:
		case <-w.done:
		}
	}
	e.wg.Wait()

	var balances []ledger.Balance
	var errs []error
	for _, w := range e.workers {
		if w.fatal != nil {
			errs = append(errs, w.fatal)
		}
		for _, account := range w.accounts {
			balances = append(balances, account.Balance())
			if err := account.Close(); err != nil {
				w.logger.Warn("failed to close account",
					"client", account.Client(),
					"error", err)
			}
		}
	}
	return balances, errors.Join(errs...)
}
