// Package errs defines the error kinds shared across the ingestion and
// chain-analysis pipeline, so that callers at subsystem boundaries can
// dispatch on kind rather than string-match messages.
package errs

import (
	goerrors "github.com/go-errors/errors"
)

// Kind identifies one of the error categories from the pipeline's error
// handling design: each kind carries its own recovery policy at the call
// site (skip the item, defer, abort the run, ...).
type Kind int

const (
	// KindTransientRPC marks a network/HTTP failure talking to the full
	// node or an Esplora mirror. The caller skips the current item and,
	// for the block scanner, must not advance the cursor.
	KindTransientRPC Kind = iota

	// KindChannelStillOpen marks a funding output that hasn't been spent
	// yet. Not an error condition, just a signal to stop walking.
	KindChannelStillOpen

	// KindOutputNotSpentYet marks a closing output, or one of its
	// follow-up spends, that is still pending. Labeling is deferred to a
	// later scan.
	KindOutputNotSpentYet

	// KindClassificationUnknown marks a closing transaction the classifier
	// cannot work through from the chain data it was given (an input
	// referencing an output index its parent tx does not have). Classify
	// returns it and the caller skips that close.
	KindClassificationUnknown

	// KindDeducerKeyError marks an intersection the deducer assumed
	// non-empty turning out empty (e.g. two unrelated fundings sharing a
	// change address). The specific constraint is skipped.
	KindDeducerKeyError

	// KindFatalDB marks the database being unreachable. The run aborts.
	KindFatalDB
)

func (k Kind) String() string {
	switch k {
	case KindTransientRPC:
		return "transient-rpc"
	case KindChannelStillOpen:
		return "channel-still-open"
	case KindOutputNotSpentYet:
		return "output-not-spent-yet"
	case KindClassificationUnknown:
		return "classification-unknown"
	case KindDeducerKeyError:
		return "deducer-key-error"
	case KindFatalDB:
		return "fatal-db"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error that carries a stack trace when it's
// constructed from New/Wrap, following the same stack-carrying-error idiom
// the teacher uses for validation failures.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a Kind-tagged error with a stack trace attached.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: goerrors.New(msg)}
}

// Wrap attaches a Kind to an existing error, preserving its stack trace if
// it already carries one.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: goerrors.Wrap(err, 1)}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ce, ok := err.(*Error); ok {
			e = ce
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
