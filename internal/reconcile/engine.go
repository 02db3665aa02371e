package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/logging"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// DefaultTxTimeout bounds the replace transaction.
const DefaultTxTimeout = 2 * time.Minute

// Phase is a state of a sync run.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseValidating  Phase = "validating"
	PhaseResolving   Phase = "resolving"
	PhaseTransacting Phase = "transacting"
	PhaseVerifying   Phase = "verifying"
	PhaseCommitted   Phase = "committed"
	PhaseFailed      Phase = "failed"
)

// PhaseEvent reports a run entering a phase.
type PhaseEvent struct {
	RunID        string
	CollectionID string
	Phase        Phase
	At           time.Time
}

// Observer receives phase events. It is called synchronously and must not
// block.
type Observer func(PhaseEvent)

// SyncResult is the outcome of a committed and verified run.
type SyncResult struct {
	RunID          string        `json:"runId"`
	CollectionID   string        `json:"collectionId"`
	ResolvedID     string        `json:"resolvedId"`
	Processes      int           `json:"processes"`
	Detectors      int           `json:"detectors"`
	ControlItems   int           `json:"controlItems"`
	ControlMethods int           `json:"controlMethods"`
	ReactionPlans  int           `json:"reactionPlans"`
	Unresolved     int           `json:"unresolved"`
	Conflicts      int           `json:"conflicts"`
	Scopes         int           `json:"scopes"`
	Duration       time.Duration `json:"duration"`
}

// Counts returns the per-table row counts of the result.
func (r SyncResult) Counts() store.TableCounts {
	return store.TableCounts{
		Processes:      r.Processes,
		Detectors:      r.Detectors,
		ControlItems:   r.ControlItems,
		ControlMethods: r.ControlMethods,
		ReactionPlans:  r.ReactionPlans,
	}
}

// EngineOptions configures an Engine. Zero values use defaults.
type EngineOptions struct {
	TxTimeout     time.Duration
	VerifyTimeout time.Duration
	Observer      Observer
}

// Engine replaces a collection's rows with a new entity set.
//
// A run moves through Validating, Resolving, Transacting and Verifying and
// ends Committed or Failed. Nothing is written before Transacting, and a run
// only reports success after the Gate has confirmed the committed counts.
// Runs against the same collection are serialized; runs against different
// collections proceed independently. Nothing is retried.
type Engine struct {
	store store.Store
	gate  *Gate
	opts  EngineOptions
	locks *keyedLocks
	now   func() time.Time
}

// NewEngine returns an engine writing to st.
func NewEngine(st store.Store, opts EngineOptions) *Engine {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = DefaultTxTimeout
	}
	return &Engine{
		store: st,
		gate:  NewGate(st, opts.VerifyTimeout),
		opts:  opts,
		locks: newKeyedLocks(),
		now:   time.Now,
	}
}

type run struct {
	id         string
	collection string
	resolved   string
	phase      Phase
	logger     *slog.Logger
}

// Sync replaces the rows of collectionID with rows built from entities.
// Failures are returned as *SyncError.
func (e *Engine) Sync(ctx context.Context, collectionID string, entities []ProcessEntity) (SyncResult, error) {
	start := e.now()
	r := &run{id: uuid.NewString(), collection: collectionID, phase: PhaseIdle}
	r.logger = logging.WithFields(ctx, "run_id", r.id, "collection", collectionID)
	result := SyncResult{RunID: r.id, CollectionID: collectionID}

	fail := func(kind ErrorKind, expected store.TableCounts, err error) (SyncResult, error) {
		var se *SyncError
		if !errors.As(err, &se) {
			se = &SyncError{Kind: kind, Expected: expected, Err: err}
		}
		se.Phase = r.phase
		se.CollectionID = collectionID
		se.ResolvedID = r.resolved
		e.transition(r, PhaseFailed)
		r.logger.Error("sync failed", "kind", se.Kind, "phase", se.Phase, "error", se.Err)
		result.Duration = e.now().Sub(start)
		return result, se
	}

	// Validating
	e.transition(r, PhaseValidating)
	if len(entities) == 0 {
		return fail(KindInputEmpty, store.TableCounts{}, errors.New("no resolvable entities"))
	}
	if err := validateEntities(entities); err != nil {
		return fail(KindInvalidEntity, store.TableCounts{}, err)
	}
	rows := FlattenRows(entities)
	expected := rows.Counts()

	// Resolving
	e.transition(r, PhaseResolving)
	resolved, err := e.ResolveCollection(ctx, collectionID)
	if err != nil {
		if errors.Is(err, ErrUnknownCollection) {
			return fail(KindUnknownCollection, expected, errors.New("no registered collection under exact, upper or lower case"))
		}
		return fail(KindTransactionFailure, expected, err)
	}
	r.resolved = resolved
	result.ResolvedID = resolved

	unlock, err := e.locks.Lock(ctx, resolved)
	if err != nil {
		return fail(KindTransactionFailure, expected, fmt.Errorf("wait for collection lock: %w", err))
	}
	defer unlock()

	// Transacting
	e.transition(r, PhaseTransacting)
	txCtx, cancel := context.WithTimeout(ctx, e.opts.TxTimeout)
	written, err := e.store.Replace(txCtx, resolved, rows)
	cancel()
	if err != nil {
		return fail(KindTransactionFailure, expected, err)
	}
	if written != expected {
		return fail(KindVerificationMismatch, expected, &SyncError{
			Kind:     KindVerificationMismatch,
			Expected: expected,
			Actual:   written,
			Err:      errors.New("store reported different insert counts"),
		})
	}

	// Verifying
	e.transition(r, PhaseVerifying)
	if _, err := e.gate.Verify(ctx, resolved, expected); err != nil {
		return fail(KindVerificationMismatch, expected, err)
	}

	e.transition(r, PhaseCommitted)
	result.Processes = expected.Processes
	result.Detectors = expected.Detectors
	result.ControlItems = expected.ControlItems
	result.ControlMethods = expected.ControlMethods
	result.ReactionPlans = expected.ReactionPlans
	result.Duration = e.now().Sub(start)

	r.logger.Info("sync committed",
		"resolved", resolved,
		"counts", expected.String(),
		"duration", result.Duration,
	)
	return result, nil
}

// ResolveCollection finds the registered id for collectionID, trying the
// exact string, then upper case, then lower case.
func (e *Engine) ResolveCollection(ctx context.Context, collectionID string) (string, error) {
	id := strings.TrimSpace(collectionID)
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrUnknownCollection)
	}

	tried := make(map[string]bool, 3)
	for _, candidate := range []string{id, strings.ToUpper(id), strings.ToLower(id)} {
		if tried[candidate] {
			continue
		}
		tried[candidate] = true

		ok, err := e.store.CollectionExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("resolve collection: %w", err)
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, collectionID)
}

func (e *Engine) transition(r *run, to Phase) {
	r.logger.Debug("sync phase", "from", r.phase, "to", to)
	r.phase = to
	if e.opts.Observer != nil {
		e.opts.Observer(PhaseEvent{RunID: r.id, CollectionID: r.collection, Phase: to, At: e.now()})
	}
}

func validateEntities(entities []ProcessEntity) error {
	seen := make(map[string]bool, len(entities))
	for i, ent := range entities {
		if strings.TrimSpace(ent.ProcessNo) == "" {
			return fmt.Errorf("entity %d: empty process number", i)
		}
		key := CanonicalKey(ent.ProcessNo)
		if seen[key] {
			return fmt.Errorf("entity %d: duplicate process number %q", i, ent.ProcessNo)
		}
		seen[key] = true
	}
	return nil
}
