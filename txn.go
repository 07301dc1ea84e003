package txnpool

import (
	"database/sql"
	"log"

	"github.com/gitpan/txnpool/metrics"
)

// Conn is the borrowed connection the pool opens transactions on. The pool
// never opens or closes the connection itself; the caller owns its lifecycle.
type Conn interface {
	Begin() (Tx, error)
}

// Tx is a single open transaction. Item callbacks execute their statements
// through it via Pool.Tx.
type Tx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

type sqlConn struct {
	db *sql.DB
}

// WrapDB adapts a *sql.DB to the Conn interface.
func WrapDB(db *sql.DB) Conn {
	return &sqlConn{db: db}
}

func (c *sqlConn) Begin() (Tx, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// beginIfNeeded opens a transaction unless one is already open.
func (p *Pool[T]) beginIfNeeded() error {
	if p.tx != nil {
		return nil
	}
	var tx Tx
	err := p.guard.Run(func() error {
		var e error
		tx, e = p.conn.Begin()
		return e
	})
	if err != nil {
		return &ConnError{Op: "begin", Err: err}
	}
	p.tx = tx
	return nil
}

// rollbackIfOpen rolls back the open transaction, if any. The transaction is
// treated as closed even when the rollback call itself errors: after a failed
// rollback the session is unusable either way, and keeping it marked open
// would send every later failure back into another rollback. The first error
// is the one that matters; the rollback error is only logged.
func (p *Pool[T]) rollbackIfOpen() {
	if p.tx == nil {
		return
	}
	tx := p.tx
	p.tx = nil
	if err := p.guard.Run(tx.Rollback); err != nil {
		log.Printf("[txnpool] %s: rollback failed: %v", p.name, err)
	}
}

// commitIfOpen commits the open transaction, if any. On failure the
// transaction stays open so the caller can route the error through deadlock
// classification and roll back.
func (p *Pool[T]) commitIfOpen() error {
	if p.tx == nil {
		return nil
	}
	if err := p.guard.Run(p.tx.Commit); err != nil {
		return &ConnError{Op: "commit", Err: err}
	}
	p.tx = nil
	metrics.CommitsTotal.WithLabelValues(p.name).Inc()
	metrics.BatchSize.WithLabelValues(p.name).Observe(float64(len(p.items)))
	if p.commitFunc != nil {
		p.commitFunc(p)
	}
	return nil
}
