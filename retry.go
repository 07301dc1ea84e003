package txnpool

import (
	"errors"
	"log"
	"time"

	"github.com/gitpan/txnpool/metrics"
)

// recoverCycle is the failure path for item execution and commit. It rolls
// back the open transaction and classifies err. Deadlocks are retried by
// replaying the whole buffered batch in a fresh transaction, with a backoff
// that grows with each consecutive attempt, until the replay succeeds or the
// ceiling is hit. Anything else abandons the batch immediately.
//
// On a nil return the batch has been fully re-executed and a transaction is
// open again. On a non-nil return the transaction is closed and the buffer
// has been cleared.
func (p *Pool[T]) recoverCycle(err error) error {
	for {
		p.rollbackIfOpen()

		if !p.classify(err) {
			p.clear()
			var ce *ConnError
			if errors.As(err, &ce) {
				return err
			}
			return &ItemError{Err: err}
		}

		p.deadlocks++
		p.cycleDeadlocks++
		metrics.DeadlocksTotal.WithLabelValues(p.name).Inc()

		if p.cycleDeadlocks > p.maxDeadlocks {
			p.clear()
			return &RetryLimitError{Deadlocks: p.cycleDeadlocks, Err: err}
		}

		log.Printf("[txnpool] %s: deadlock detected (%d/%d), replaying %d items",
			p.name, p.cycleDeadlocks, p.maxDeadlocks, len(p.execOrder()))
		metrics.ReplaysTotal.WithLabelValues(p.name).Inc()

		if err = p.playPool(); err == nil {
			return nil
		}
	}
}

// playPool opens a fresh transaction and re-executes the callback for every
// buffered item in execution order. The rolled-back transaction lost all of
// its statements, not just the conflicting one; replaying anything less
// would silently drop writes. On a retry it first sleeps proportionally to
// the number of consecutive deadlocks, under the signal guard since the
// sleep occupies the same vulnerable window as the driver calls.
func (p *Pool[T]) playPool() error {
	if err := p.beginIfNeeded(); err != nil {
		return err
	}
	if p.cycleDeadlocks > 0 {
		delay := time.Duration(p.cycleDeadlocks) * p.backoff
		metrics.BackoffSeconds.WithLabelValues(p.name).Observe(delay.Seconds())
		p.guard.Run(func() error {
			time.Sleep(delay)
			return nil
		})
	}
	for _, item := range p.execOrder() {
		if err := p.runItem(item); err != nil {
			return err
		}
	}
	return nil
}
