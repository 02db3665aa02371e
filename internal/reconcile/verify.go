package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// DefaultVerifyTimeout bounds the post-commit read-back.
const DefaultVerifyTimeout = 30 * time.Second

// Counter reads committed row counts. store.Store satisfies it.
type Counter interface {
	Count(ctx context.Context, table store.Table, collectionID string) (int, error)
}

// Gate confirms that committed state matches what a run wrote. Its reads
// run outside the write transaction, one per table, concurrently.
type Gate struct {
	counter Counter
	timeout time.Duration
}

// NewGate returns a gate reading through counter. A non-positive timeout
// uses DefaultVerifyTimeout.
func NewGate(counter Counter, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &Gate{counter: counter, timeout: timeout}
}

// Verify reads the five table counts for collectionID and compares them to
// expected. It returns the counts it read and, on disagreement, a
// *SyncError of kind TransactionFailure (nothing persisted) or
// VerificationMismatch (anything else, including a failed read).
func (g *Gate) Verify(ctx context.Context, collectionID string, expected store.TableCounts) (store.TableCounts, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	counts := make([]int, len(store.AllTables))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, t := range store.AllTables {
		eg.Go(func() error {
			n, err := g.counter.Count(egCtx, t, collectionID)
			if err != nil {
				return fmt.Errorf("read back %s: %w", t, err)
			}
			counts[i] = n
			return nil
		})
	}

	var actual store.TableCounts
	err := eg.Wait()
	for i, t := range store.AllTables {
		actual.Set(t, counts[i])
	}

	newErr := func(kind ErrorKind, cause error) error {
		return &SyncError{
			Kind:       kind,
			Phase:      PhaseVerifying,
			ResolvedID: collectionID,
			Expected:   expected,
			Actual:     actual,
			Err:        cause,
		}
	}

	switch {
	case err != nil:
		return actual, newErr(KindVerificationMismatch, err)
	case actual == expected:
		return actual, nil
	case actual.IsZero() && !expected.IsZero():
		return actual, newErr(KindTransactionFailure, fmt.Errorf("no rows persisted"))
	default:
		return actual, newErr(KindVerificationMismatch, fmt.Errorf("tables differ: %v", actual.Diff(expected)))
	}
}
