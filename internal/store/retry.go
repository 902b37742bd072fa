package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"ledger_system/internal/domain"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that mean "retry the transaction"
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// transientKind reports the failure kind a retry might clear, or "" when retrying is pointless
func transientKind(err error) domain.Kind {
	if err == nil || domain.KindOf(err) != "" {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}

	if errors.Is(err, errOperationRace) {
		return domain.KindConcurrencyConflict
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return domain.KindConcurrencyConflict
		}
		return ""
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return domain.KindStoreUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KindStoreUnavailable
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") {
		return domain.KindConcurrencyConflict
	}
	return ""
}
