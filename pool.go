// Package txnpool batches data-manipulation work into bounded transactions
// and transparently recovers from deadlocks by rolling back and replaying
// the whole pending batch with backoff.
//
// One transaction per row is prohibitively slow on engines that flush to
// stable storage per commit, while batching many writes raises the odds of
// lock-order conflicts between concurrent writers. A Pool buffers items,
// executes the item callback for each inside a shared transaction, commits
// every Capacity items (or on Finish), and when the store picks the
// transaction as a deadlock victim it rolls back, sleeps, and re-executes
// the callback for every buffered item in a fresh transaction, up to
// MaxDeadlocks consecutive attempts.
//
// A Pool is single-threaded: Add and Finish block the caller for the
// duration of statement execution and backoff sleeps. Pools share nothing;
// use one pool per writer goroutine.
package txnpool

import (
	"os"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/gitpan/txnpool/metrics"
	"github.com/gitpan/txnpool/sigmask"
)

const (
	defaultCapacity     = 100
	defaultMaxDeadlocks = 5
	defaultBackoff      = 500 * time.Millisecond
	defaultName         = "default"
)

var (
	defaultSignalsMu sync.Mutex
	defaultSignals   = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
)

// SetDefaultBlockedSignals replaces the process-wide default signal set used
// by pools whose Config leaves BlockedSignals nil. Call it once during
// initialization, before constructing pools; pools capture the default at
// construction time.
func SetDefaultBlockedSignals(signals ...os.Signal) {
	defaultSignalsMu.Lock()
	defer defaultSignalsMu.Unlock()
	defaultSignals = slices.Clone(signals)
}

func defaultBlockedSignals() []os.Signal {
	defaultSignalsMu.Lock()
	defer defaultSignalsMu.Unlock()
	return slices.Clone(defaultSignals)
}

// Config assembles the callbacks and tuning knobs for a Pool.
type Config[T any] struct {
	// Conn is the borrowed connection transactions are opened on. Required.
	Conn Conn

	// ItemFunc executes one item inside the open transaction, typically via
	// pool.Tx(). Required. A deadlock error triggers rollback and replay;
	// any other error abandons the batch.
	ItemFunc func(pool *Pool[T], item T) error

	// SortFunc, when set, defers all execution to Finish and runs the items
	// in the order it defines (stable sort). Useful as an ordering hint to
	// reduce lock-order conflicts between concurrent writers.
	SortFunc func(a, b T) int

	// PostItemFunc runs after a successful commit, once per item, in
	// insertion order (not sorted order).
	PostItemFunc func(pool *Pool[T], item T)

	// CommitFunc runs after every successful commit.
	CommitFunc func(pool *Pool[T])

	// Capacity is the number of buffered items that forces a flush.
	// Defaults to 100.
	Capacity int

	// MaxDeadlocks is the ceiling on consecutive deadlocks within one flush
	// cycle before the batch is abandoned. Defaults to 5.
	MaxDeadlocks int

	// Backoff is the base sleep before a replay; the n-th consecutive retry
	// sleeps n times this long. Defaults to 500ms.
	Backoff time.Duration

	// BlockedSignals are deferred while driver calls and backoff sleeps are
	// in flight. Defaults to the process-wide default (SIGTERM, SIGINT).
	BlockedSignals []os.Signal

	// Classifier decides which errors count as deadlocks. Defaults to
	// DeadlockErrors (MySQL/MariaDB and PostgreSQL).
	Classifier Classifier

	// Name labels this pool's metrics. Defaults to "default".
	Name string
}

// Pool buffers items and flushes them in bounded transactions.
type Pool[T any] struct {
	conn         Conn
	itemFunc     func(*Pool[T], T) error
	sortFunc     func(a, b T) int
	postItemFunc func(*Pool[T], T)
	commitFunc   func(*Pool[T])
	capacity     int
	maxDeadlocks int
	backoff      time.Duration
	classify     Classifier
	guard        *sigmask.Guard
	name         string

	items          []T // insertion order, defines post-item callback order
	queue          []T // execution order while a sorted cycle is in flight
	tx             Tx
	deadlocks      uint64
	cycleDeadlocks int
}

// New validates cfg and creates a Pool. The connection and the item callback
// are required; everything else has defaults.
func New[T any](cfg Config[T]) (*Pool[T], error) {
	if cfg.Conn == nil {
		return nil, ErrMissingConn
	}
	if cfg.ItemFunc == nil {
		return nil, ErrMissingItemFunc
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultCapacity
	}
	if cfg.MaxDeadlocks <= 0 {
		cfg.MaxDeadlocks = defaultMaxDeadlocks
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Classifier == nil {
		cfg.Classifier = DeadlockErrors
	}
	if cfg.BlockedSignals == nil {
		cfg.BlockedSignals = defaultBlockedSignals()
	}
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	return &Pool[T]{
		conn:         cfg.Conn,
		itemFunc:     cfg.ItemFunc,
		sortFunc:     cfg.SortFunc,
		postItemFunc: cfg.PostItemFunc,
		commitFunc:   cfg.CommitFunc,
		capacity:     cfg.Capacity,
		maxDeadlocks: cfg.MaxDeadlocks,
		backoff:      cfg.Backoff,
		classify:     cfg.Classifier,
		guard:        sigmask.New(cfg.BlockedSignals...),
		name:         cfg.Name,
	}, nil
}

// Add buffers item and, unless a SortFunc is configured, executes its
// callback inside the open transaction, flushing when the buffer reaches
// Capacity. Deadlocks are recovered internally; any returned error is fatal
// for the batch and the buffer has been cleared.
func (p *Pool[T]) Add(item T) error {
	p.cycleDeadlocks = 0
	p.items = append(p.items, item)
	metrics.ItemsTotal.WithLabelValues(p.name).Inc()

	if p.sortFunc != nil {
		// Execution order is only known once the batch is complete.
		return nil
	}

	if err := p.beginIfNeeded(); err != nil {
		p.clear()
		return err
	}
	if err := p.runItem(item); err != nil {
		if err = p.recoverCycle(err); err != nil {
			return err
		}
	}
	if len(p.items) >= p.capacity {
		return p.Finish()
	}
	return nil
}

// Finish flushes the pool: in sorted mode it executes the whole batch in
// comparator order first, then commits whatever transaction is open, runs
// the post-item callbacks in insertion order, and empties the buffer. The
// buffer is emptied even when Finish fails; an abandoned batch is never
// replayed by a later call. Finishing an empty, idle pool is a no-op.
func (p *Pool[T]) Finish() error {
	if p.sortFunc != nil && len(p.items) > 0 {
		queue := slices.Clone(p.items)
		slices.SortStableFunc(queue, p.sortFunc)
		p.queue = queue
		if err := p.playPool(); err != nil {
			if err = p.recoverCycle(err); err != nil {
				p.clear()
				return err
			}
		}
	}

	p.cycleDeadlocks = 0
	for {
		err := p.commitIfOpen()
		if err == nil {
			break
		}
		if err = p.recoverCycle(err); err != nil {
			p.clear()
			return err
		}
		// Replay succeeded and left a fresh transaction open; commit again.
	}

	if p.postItemFunc != nil {
		for _, item := range p.items {
			p.postItemFunc(p, item)
		}
	}
	p.clear()
	return nil
}

// Close flushes any pending items. A pool must not go out of scope with a
// non-empty buffer; defer Close after construction.
func (p *Pool[T]) Close() error {
	return p.Finish()
}

// Conn returns the borrowed connection, for use inside callbacks.
func (p *Pool[T]) Conn() Conn {
	return p.conn
}

// Tx returns the currently open transaction, or nil when none is open.
// Item callbacks execute their statements through it.
func (p *Pool[T]) Tx() Tx {
	return p.tx
}

// Deadlocks returns the lifetime count of deadlocks this pool recovered or
// gave up on. It is never reset.
func (p *Pool[T]) Deadlocks() uint64 {
	return p.deadlocks
}

// Len returns the number of buffered items awaiting commit.
func (p *Pool[T]) Len() int {
	return len(p.items)
}

// Pending returns a copy of the buffered items in insertion order.
func (p *Pool[T]) Pending() []T {
	return slices.Clone(p.items)
}

// runItem executes the item callback under the signal guard.
func (p *Pool[T]) runItem(item T) error {
	return p.guard.Run(func() error {
		return p.itemFunc(p, item)
	})
}

// execOrder is the order items run (and re-run) in within the current cycle.
func (p *Pool[T]) execOrder() []T {
	if p.queue != nil {
		return p.queue
	}
	return p.items
}

func (p *Pool[T]) clear() {
	p.items = nil
	p.queue = nil
}
