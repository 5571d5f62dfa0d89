package domain

import (
	"errors"
	"fmt"
)

// Business failures surfaced to callers. Each maps to a stable reason code
// via Code; none of them leaves partial effects behind.
var (
	ErrValidation           = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient listing quantity")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidOperation     = errors.New("operation not allowed")
	ErrForbidden            = errors.New("forbidden")
	ErrNoSuchRecipe         = errors.New("no such recipe")
	ErrInvalidRecipe        = errors.New("invalid recipe")
	ErrNotInitialized       = errors.New("reward table not initialized")
	ErrDuplicateRequest     = errors.New("duplicate request")

	// ErrConcurrency marks transient lock contention. The whole operation is
	// safe to retry: every operation re-validates state after reacquiring
	// its locks.
	ErrConcurrency = errors.New("concurrent modification, retry")

	// ErrInvariant marks defensively detected state corruption (e.g. a
	// negative quantity observed in storage). Never retried, never absorbed.
	ErrInvariant = errors.New("economic invariant violated")
)

// InsufficientInventoryError reports the first item whose quantity would go
// negative. The batch it belonged to was rolled back in full.
type InsufficientInventoryError struct {
	Item string
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory of %s", e.Item)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// ErrInsufficientInventory matches any InsufficientInventoryError via
// errors.Is, for callers that do not care which item fell short.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// Code maps a business failure to its stable wire-level reason code.
// Unknown errors map to "internal".
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNoSuchRecipe):
		return "no_such_recipe"
	case errors.Is(err, ErrInvalidRecipe):
		return "invalid_recipe"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	case errors.Is(err, ErrConcurrency):
		return "concurrency"
	case errors.Is(err, ErrInvariant):
		return "invariant_violation"
	default:
		return "internal"
	}
}
