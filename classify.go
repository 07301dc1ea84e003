package txnpool

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Classifier decides whether an error means the store aborted the
// transaction to break a lock cycle. Only errors it accepts are retried;
// everything else (including lock-wait timeouts) aborts the batch.
type Classifier func(err error) bool

// MySQL ER_LOCK_DEADLOCK. ER_LOCK_WAIT_TIMEOUT (1205) is deliberately not
// matched: a timeout means the transaction is still waiting its turn, not
// that the server chose a victim.
const mysqlDeadlockCode = 1213

// MySQLDeadlocks matches deadlock errors reported by MySQL and MariaDB.
func MySQLDeadlocks(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlockCode
	}
	return strings.Contains(err.Error(), "Deadlock found when trying to get lock")
}

// PostgresDeadlocks matches deadlock and serialization failures reported by
// PostgreSQL (SQLSTATE 40P01 deadlock_detected, 40001 serialization_failure).
func PostgresDeadlocks(err error) bool {
	if err == nil {
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "40P01" || pe.Code == "40001"
	}
	return strings.Contains(err.Error(), "deadlock detected")
}

// AnyOf combines classifiers; the result accepts an error when any of the
// given classifiers accepts it.
func AnyOf(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range classifiers {
			if c(err) {
				return true
			}
		}
		return false
	}
}

// DeadlockErrors is the default classifier, covering both supported backends.
var DeadlockErrors = AnyOf(MySQLDeadlocks, PostgresDeadlocks)
