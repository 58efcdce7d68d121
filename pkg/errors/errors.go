// Package apperrors declares the sentinel errors making up the error
// taxonomy: transient venue errors, operation failures, config errors,
// and invariant violations. Components wrap these with
// fmt.Errorf("...: %w", ...); callers use errors.Is against the sentinel,
// never a string match.
package apperrors

import "errors"

var (
	// ErrInvalidConfig marks a configuration error. Fails startup before
	// the orchestrator ever transitions out of IDLE.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrOrderNotFound is returned by ExchangeAdapter.Cancel/GetOrder when
	// the venue reports the order unknown. Not-found on cancel is treated
	// as success, never retried.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRateLimited marks a venue response indicating the caller should
	// back off; transient.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNetwork marks a transport-level failure reaching the venue;
	// transient.
	ErrNetwork = errors.New("network error")

	// ErrServiceUnavailable marks a venue 5xx/maintenance response;
	// transient.
	ErrServiceUnavailable = errors.New("exchange service unavailable")

	// ErrInvariantViolation marks a ledger invariant that failed to hold
	// (e.g. a fill computed a negative pool balance). Always fatal:
	// triggers emergency-shutdown, with the error's message (not a fixed
	// "invariant" tag) as the reason.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDuplicateOrder marks a client-order-id collision on the paper
	// simulator or a venue idempotency rejection.
	ErrDuplicateOrder = errors.New("duplicate order")

	// ErrInsufficientFunds marks a venue rejection for insufficient
	// balance; an operation failure, not transient.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// IsTransient reports whether err should be retried by the Live adapter's
// backoff policy. Only network, rate-limit, and service-unavailable
// classes are transient; everything else (including ErrOrderNotFound) is
// not.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable)
}
