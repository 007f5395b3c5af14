package ledger

import (
	"errors"
	"fmt"
)

// ErrMalformed marks a ledger file whose content does not match the expected layout.
var ErrMalformed = errors.New("malformed ledger")

// StorageError reports a failed ledger read or write.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrorKind classifies ledger failures for callers that map errors to outcomes.
func (e *StorageError) ErrorKind() string { return "storage" }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
