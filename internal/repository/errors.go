// Package repository holds the MySQL data access layer.  Every query is
// written in the subset of SQL shared by MySQL and SQLite so the same code
// runs against the in-memory test database.
//
// Sentinel values defined here let higher layers (ledger, handlers)
// distinguish failure scenarios with errors.Is.
package repository

import (
    "errors"
    "strings"

    "github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an insert collides with an existing row,
// such as favoriting the same parking spot twice.  Handlers translate it
// into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrUserNotFound is returned when the referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrInsufficientPoints is returned by a debit that would take the balance
// below zero.  Nothing is written in that case.
var ErrInsufficientPoints = errors.New("insufficient points")

// ErrDuplicateRef is returned when a ledger entry carries a ref that was
// already applied.
var ErrDuplicateRef = errors.New("ledger ref already applied")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-constraint violation.
func isDuplicate(err error) bool {
    if err == nil {
        return false
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number == mysqlDuplicateEntry
    }
    msg := strings.ToLower(err.Error())
    return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
