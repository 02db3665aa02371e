package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// ErrorKind classifies a failed sync run.
type ErrorKind string

const (
	// KindInputEmpty: nothing to write. Persisted rows are untouched.
	KindInputEmpty ErrorKind = "InputEmpty"
	// KindInvalidEntity: an entity has an empty or duplicate processNo.
	// Persisted rows are untouched.
	KindInvalidEntity ErrorKind = "InvalidEntity"
	// KindUnknownCollection: the collection id did not resolve under any
	// casing. Persisted rows are untouched.
	KindUnknownCollection ErrorKind = "UnknownCollection"
	// KindTransactionFailure: the replace transaction rolled back, or the
	// store was unreachable. Persisted rows are unchanged; retrying is safe.
	KindTransactionFailure ErrorKind = "TransactionFailure"
	// KindVerificationMismatch: the transaction committed but the read-back
	// disagrees with what was written. Inspect the store before retrying.
	KindVerificationMismatch ErrorKind = "VerificationMismatch"
)

// Sentinels for errors.Is. A *SyncError matches the sentinel of its kind.
var (
	ErrInputEmpty           = errors.New("input empty")
	ErrInvalidEntity        = errors.New("invalid entity")
	ErrUnknownCollection    = errors.New("unknown collection")
	ErrTransactionFailure   = errors.New("transaction failure")
	ErrVerificationMismatch = errors.New("verification mismatch")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindInputEmpty:
		return ErrInputEmpty
	case KindInvalidEntity:
		return ErrInvalidEntity
	case KindUnknownCollection:
		return ErrUnknownCollection
	case KindTransactionFailure:
		return ErrTransactionFailure
	case KindVerificationMismatch:
		return ErrVerificationMismatch
	}
	return nil
}

// SyncError describes a failed run with enough detail to diagnose it
// without re-running.
type SyncError struct {
	Kind         ErrorKind
	Phase        Phase
	CollectionID string // as requested
	ResolvedID   string // as persisted; empty if resolution did not happen
	Expected     store.TableCounts
	Actual       store.TableCounts
	Err          error
}

func (e *SyncError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sync %q: %s", e.CollectionID, e.Kind.sentinel())
	if e.ResolvedID != "" && e.ResolvedID != e.CollectionID {
		fmt.Fprintf(&b, " (resolved %q)", e.ResolvedID)
	}
	switch {
	case e.Kind == KindVerificationMismatch || e.Phase == PhaseVerifying:
		fmt.Fprintf(&b, ": expected [%s] actual [%s]", e.Expected, e.Actual)
	case !e.Expected.IsZero():
		fmt.Fprintf(&b, ": expected [%s]", e.Expected)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SyncError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *SyncError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of a *SyncError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
