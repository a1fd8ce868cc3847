package weather

import (
	"errors"
	"fmt"
)

// ErrNoObservation is returned by Fetcher when the attempt budget is spent
// without a valid observation. It is an expected outcome; callers treat it as
// "no data right now".
var ErrNoObservation = errors.New("no observation available")

// ErrNoForecast is the forecast counterpart of ErrNoObservation.
var ErrNoForecast = errors.New("no forecast available")

// FailureKind classifies why a single upstream attempt failed.
type FailureKind string

const (
	// KindUnconfigured means no credentials are set. Permanent.
	KindUnconfigured FailureKind = "unconfigured"
	// KindNetwork covers transport errors, timeouts and an open circuit.
	KindNetwork FailureKind = "network"
	// KindRemote is a non-success status or unreadable body from upstream.
	KindRemote FailureKind = "remote"
	// KindRejected means the payload failed validation.
	KindRejected FailureKind = "validation_rejected"
	// KindUnexpected is a recovered panic inside an attempt.
	KindUnexpected FailureKind = "unexpected"
)

// Retryable reports whether another attempt may succeed.
func (k FailureKind) Retryable() bool {
	return k != KindUnconfigured
}

// FetchError is a classified upstream failure.
type FetchError struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError.
func NewFetchError(kind FailureKind, op string, err error) *FetchError {
	return &FetchError{Kind: kind, Op: op, Err: err}
}

// RejectedError is returned by PayloadValidator with the first failing check.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "payload rejected: " + e.Reason
}

func rejectf(format string, args ...any) *RejectedError {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Errors that carry no classification are treated as
// network failures since they most often come from the transport.
func KindOf(err error) FailureKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var re *RejectedError
	if errors.As(err, &re) {
		return KindRejected
	}
	if errors.Is(err, ErrInvalidObservation) {
		return KindRejected
	}
	return KindNetwork
}
