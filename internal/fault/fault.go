// Package fault classifies engine errors so callers know whether to fix
// their input, resubmit, or retry.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindValidation covers bad amounts, below-minimum requests and missing
	// KYC. Surfaced to the caller, never retried.
	KindValidation Kind = iota

	// KindConflict covers balances that changed between request creation and
	// decision, stale cursors and duplicate redeem-per-day. The caller must
	// resubmit against fresh state.
	KindConflict

	// KindNotFound covers missing percentage configs and unknown
	// subscriptions. The scheduler skips and logs these, they are not fatal
	// to a batch run.
	KindNotFound

	// KindTransient covers collaborator timeouts. Retried with backoff; all
	// ledger writes are idempotency-keyed so retries cannot double-post.
	KindTransient
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of err, and whether err carries one at all.
// Unclassified errors are server faults and must not be shown to callers.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

func IsValidation(err error) bool { return is(err, KindValidation) }
func IsConflict(err error) bool   { return is(err, KindConflict) }
func IsNotFound(err error) bool   { return is(err, KindNotFound) }
func IsTransient(err error) bool  { return is(err, KindTransient) }

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
