package geocode

import (
	"errors"
	"fmt"
	"nearby-guide/internal/logger"
)

var (
	ErrNotFound    = errors.New("address not found")
	ErrRateLimited = errors.New("geocoder rate limited")
	ErrNetwork     = errors.New("geocoder unreachable")
	ErrParse       = errors.New("geocoder response unreadable")
	ErrRejected    = errors.New("geocoder rejected request")

	// ErrImplausibleMatch marks a result too far from its anchor to be the intended place.
	ErrImplausibleMatch = errors.New("implausible geocode match")
)

// Kind classifies a geocoding failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindRateLimited
	KindNetwork
	KindParse
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	case KindRejected:
		return "rejected"
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind is worth another attempt.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindNetwork
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindRateLimited:
		return ErrRateLimited
	case KindNetwork:
		return ErrNetwork
	case KindParse:
		return ErrParse
	case KindRejected:
		return ErrRejected
	}
	return nil
}

// Error is returned for every failed lookup.
type Error struct {
	Kind   Kind
	Query  string
	Status int // HTTP status when one was received
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("geocode %q: %s", logger.MaskAddress(e.Query), e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{}
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind Kind, query string, status int, err error) *Error {
	return &Error{Kind: kind, Query: query, Status: status, Err: err}
}

// KindOf extracts the failure kind from err, or 0 when err is not a geocoding error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}

// IsRetryable reports whether err is a transient geocoding failure.
func IsRetryable(err error) bool {
	return KindOf(err).Retryable()
}

// UserMessage turns a geocoding failure into something the user can act on.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "We couldn't find that address. Try adding the borough or a nearby cross street."
	case errors.Is(err, ErrRateLimited):
		return "The map service is busy right now. Please try again in a minute."
	case errors.Is(err, ErrNetwork):
		return "We couldn't reach the map service. Check your connection and try again."
	case errors.Is(err, ErrParse):
		return "The map service sent an unexpected answer. Please try again shortly."
	case errors.Is(err, ErrRejected):
		return "That search couldn't be processed. Try a shorter street address."
	}
	return "Something went wrong looking up that address. Please try again."
}
