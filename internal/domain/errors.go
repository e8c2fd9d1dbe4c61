package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the parent of every user input error. Callers report
	// these back to the user instead of failing the process.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAreaNotFound means a requested basin, country or cell has no rows in
	// the dataset once it is joined to the catalog.
	ErrAreaNotFound = errors.New("area not found")

	// ErrDatasetNotFound means an upload id is unknown or its dataset has
	// expired from the cache.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrSelectionRequired is returned when an unfiltered gridded view is
	// requested for a dataset larger than the configured row limit.
	ErrSelectionRequired = errors.New("gridded view over the full dataset requires a map selection")
)

// InputError describes a rejected request parameter.
type InputError struct {
	Field   string
	Value   string
	Message string
}

func (e *InputError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Message)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// InvalidStatisticError is returned for a statistic name outside the
// supported set.
type InvalidStatisticError struct {
	Statistic string
}

func (e *InvalidStatisticError) Error() string {
	return fmt.Sprintf("the statistic requested %q is not a valid option", e.Statistic)
}

func (e *InvalidStatisticError) Unwrap() error { return ErrInvalidInput }

// UnsupportedUnitConversionError is returned when no conversion exists
// between two unit families.
type UnsupportedUnitConversionError struct {
	From Unit
	To   Unit
}

func (e *UnsupportedUnitConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From.String(), e.To.String())
}

// ReferenceLoadError wraps a failure to read the reference catalog or one of
// its feature collections. It is fatal at startup.
type ReferenceLoadError struct {
	Path string
	Err  error
}

func (e *ReferenceLoadError) Error() string {
	return fmt.Sprintf("load reference %s: %v", e.Path, e.Err)
}

func (e *ReferenceLoadError) Unwrap() error { return e.Err }

func invalidf(field, value, format string, args ...any) error {
	return &InputError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}
