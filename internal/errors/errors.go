// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrMalformedChain = errors.New("malformed chain row")
	ErrEmptySnapshot  = errors.New("empty chain snapshot")
	ErrDataNotFound   = errors.New("data not found")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// ChainError reports a chain row the caller handed over in an unusable
// shape. This is the one error class the pipeline surfaces loudly so the
// collaborator can drop the cycle instead of acting on a misleading verdict;
// numeric degeneracies are absorbed by the engines and never reach here.
type ChainError struct {
	Symbol string
	Row    int
	Field  string
	Err    error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain error [%s] row %d: field %s: %v", e.Symbol, e.Row, e.Field, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// NewChainError creates a new ChainError wrapping ErrMalformedChain. A nil
// cause keeps just the sentinel.
func NewChainError(symbol string, row int, field string, cause error) *ChainError {
	err := error(ErrMalformedChain)
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedChain, cause)
	}
	return &ChainError{
		Symbol: symbol,
		Row:    row,
		Field:  field,
		Err:    err,
	}
}

// StoreError represents a persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}
