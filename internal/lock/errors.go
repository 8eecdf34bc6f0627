package lock

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLocked is returned by Acquire when a live lock exists.
	// It is expected contention, not a failure.
	ErrAlreadyLocked = errors.New("lock already held")

	// ErrNotOwner is returned by Release when the lock file is gone or now
	// belongs to someone else (it was reclaimed as stale).
	ErrNotOwner = errors.New("lock not owned by caller")
)

// StorageError reports a filesystem failure in the lock directory.
// These are fatal for a scheduling cycle.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("lock storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err is (or wraps) a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
