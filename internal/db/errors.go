package db

import "errors"

// ErrKeyNotFound is returned by Get for a missing or expired key.
var ErrKeyNotFound = errors.New("db: key not found")

// Redis command names recorded on Error.
const (
	OpPing = "PING"
	OpGet  = "GET"
	OpSet  = "SET"
	OpDel  = "DEL"
)

// Error records which command failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "cache " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
