package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/ncruces/go-sqlite3"
)

// ErrNotFound is returned when no row matches the requested slug.
//
//	if errors.Is(err, db.ErrNotFound) {
//	    // Create the record instead
//	}
var ErrNotFound = errors.New("record not found")

// IsUnavailable reports whether err means the datastore itself cannot be
// used (closed pool, broken connection, unreadable or corrupt file), as
// opposed to a failure scoped to one row.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	for _, code := range []sqlite3.ErrorCode{
		sqlite3.CANTOPEN,
		sqlite3.IOERR,
		sqlite3.CORRUPT,
		sqlite3.NOTADB,
		sqlite3.FULL,
	} {
		if errors.Is(err, code) {
			return true
		}
	}

	// database/sql does not export its closed-pool error.
	return strings.Contains(err.Error(), "database is closed")
}

// IsConstraint reports whether err is a constraint violation
// (UNIQUE, NOT NULL, FOREIGN KEY, CHECK).
func IsConstraint(err error) bool {
	return err != nil && errors.Is(err, sqlite3.CONSTRAINT)
}
