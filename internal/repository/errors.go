// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow handlers to map failures to
// status codes with errors.Is / errors.As.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a user with the same email already exists.
var ErrEmailExists = errors.New("email already exists")

// ErrCodeUsed is returned when a verification code was consumed concurrently.
var ErrCodeUsed = errors.New("verification code already used")

// ErrLimitReached is matched by *LimitError.
var ErrLimitReached = errors.New("limit reached")

// LimitError reports a per-user cap (payment methods) that would be exceeded.
type LimitError struct {
	Limit   int
	Current int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit reached: %d of %d", e.Current, e.Limit)
}

// Is makes errors.Is(err, ErrLimitReached) succeed.
func (e *LimitError) Is(target error) bool { return target == ErrLimitReached }

// isDuplicateKey reports MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
