package helpers

import "fmt"

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SearchServiceError struct {
	Message string
	Cause   error
}

func (e *SearchServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SearchServiceError) Unwrap() error {
	return e.Cause
}

// -----------------------------------------------------------------------------

// ValidationError marks malformed caller input. Always a 4xx at the boundary.
type ValidationError struct {
	SearchServiceError
	Field string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{
		SearchServiceError: SearchServiceError{Message: fmt.Sprintf("invalid %s: %s", field, reason)},
		Field:              field,
	}
}

// -----------------------------------------------------------------------------

// StockNotFoundError means the query was well-formed but no tier, including
// the provider, had data for it.
type StockNotFoundError struct {
	SearchServiceError
	Query string
}

func NewStockNotFoundError(query string) *StockNotFoundError {
	return &StockNotFoundError{
		SearchServiceError: SearchServiceError{Message: fmt.Sprintf("stock not found: %s", query)},
		Query:              query,
	}
}

// -----------------------------------------------------------------------------

// ExternalServiceError marks an upstream provider failure. These count
// against the circuit breaker.
type ExternalServiceError struct {
	SearchServiceError
	Provider string
}

func NewExternalServiceError(provider, message string, cause error) *ExternalServiceError {
	return &ExternalServiceError{
		SearchServiceError: SearchServiceError{Message: fmt.Sprintf("%s: %s", provider, message), Cause: cause},
		Provider:           provider,
	}
}

// -----------------------------------------------------------------------------

// CircuitOpenError is the fail-fast rejection while a breaker is open.
// The orchestrator treats it as "provider unavailable", never as "no data".
type CircuitOpenError struct {
	SearchServiceError
	Name string
}

func NewCircuitOpenError(name string) *CircuitOpenError {
	return &CircuitOpenError{
		SearchServiceError: SearchServiceError{Message: fmt.Sprintf("circuit breaker %s is open", name)},
		Name:               name,
	}
}

// -----------------------------------------------------------------------------

// RateLimitError is the admission rejection from the sliding-window limiter.
type RateLimitError struct {
	SearchServiceError
	Current int
	Limit   int
}

func NewRateLimitError(current, limit int) *RateLimitError {
	return &RateLimitError{
		SearchServiceError: SearchServiceError{Message: fmt.Sprintf("rate limit exceeded: %d/%d requests in window", current, limit)},
		Current:            current,
		Limit:              limit,
	}
}
