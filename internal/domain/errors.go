package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyTypeSet reports that sanitization left no usable measurement
// types to pivot on, so no query can be built.
var ErrEmptyTypeSet = errors.New("no measurement types remain after sanitization")

// UnknownMeasurementTypeError reports a requested label missing from
// the measurement type reference set.
type UnknownMeasurementTypeError struct {
	Name string
}

func (e *UnknownMeasurementTypeError) Error() string {
	return fmt.Sprintf("unknown measurement type %q", e.Name)
}

// DuplicateAliasError reports two distinct requested labels collapsing
// to the same column alias. This is a configuration error and is
// raised before any query is built.
type DuplicateAliasError struct {
	Alias  string
	First  string
	Second string
}

func (e *DuplicateAliasError) Error() string {
	return fmt.Sprintf("measurement types %q and %q both sanitize to alias %q", e.First, e.Second, e.Alias)
}

// EmptyDataSetError reports a spatial operation on a data set with no
// stations.
type EmptyDataSetError struct {
	DataSetID int64
}

func (e *EmptyDataSetError) Error() string {
	return fmt.Sprintf("data set %d has no stations", e.DataSetID)
}

// StorageError wraps any failure surfaced by the backing store. The
// core never retries; callers unwrap to decide on retry policy.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
