package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrInvalidID        = errors.New("invalid document id")
	ErrRevisionConflict = errors.New("revision conflict")
)

// ConflictError carries the state a stale writer lost against.
type ConflictError struct {
	Expected int64
	Current  Snapshot
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("revision conflict: expected %d, current %d", e.Expected, e.Current.Revision)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrRevisionConflict
}

type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ValidateID rejects ids that could escape the data directory. It never
// touches the filesystem.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case strings.Contains(id, ".."),
		strings.ContainsAny(id, `/\`),
		strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
