// Package repository holds the persistence layer: the store interfaces the
// core depends on, a MySQL implementation and an in-memory implementation
// used for tests and single-process runs.  Every implementation reports
// failures with the kinds from package apperr so that callers never need
// to know which backend they talk to.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-ticketing/internal/apperr"
)

// MySQL server error numbers the repositories translate.
const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
)

func mysqlErrNo(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// notFound converts sql.ErrNoRows into apperr.ErrNotFound and leaves any
// other error untouched.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool { return mysqlErrNo(err) == errDupEntry }

func isReferenced(err error) bool { return mysqlErrNo(err) == errRowIsReferenced }

func isMissingReference(err error) bool { return mysqlErrNo(err) == errNoReferencedRow }
