package lifecycle

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("auction not found")

// ValidationError reports malformed or floor-violating input.
type ValidationError struct {
	Field   string
	Message string
	// RequiredMinimum is set for price floor violations.
	RequiredMinimum decimal.NullDecimal
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

type AuthorizationError struct {
	Role      string
	Operation string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q may not %s", e.Role, e.Operation)
}

type InvalidTransitionError struct {
	Operation string
	Current   State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed at (status=%s, auction_type=%s, approved_for_live=%t)",
		e.Operation, e.Current.Status, e.Current.AuctionType, e.Current.ApprovedForLive)
}

func invalidTransition(op Action, a Auction) *InvalidTransitionError {
	return &InvalidTransitionError{Operation: string(op), Current: a.State()}
}

// ConflictError means the record moved under the caller; Current holds the
// state actually stored.
type ConflictError struct {
	Operation string
	Current   State
	Version   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflicts with current state (status=%s, auction_type=%s, approved_for_live=%t)",
		e.Operation, e.Current.Status, e.Current.AuctionType, e.Current.ApprovedForLive)
}

// TransientError wraps storage or network failures that are safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func Transient(err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Err: err}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}
