package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/logging"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

// Options configures a Service. Zero values use defaults.
type Options struct {
	Engine        EngineOptions
	MaxConcurrent int
	MaxWait       time.Duration
	Vocabulary    *worksheet.Vocabulary
}

// Service runs the full pipeline: records or workbooks in, a verified
// replace of one collection out.
type Service struct {
	store    store.Store
	engine   *Engine
	ingestor *worksheet.Ingestor
	limiter  *RunLimiter
}

// NewService returns a service over st.
func NewService(st store.Store, opts Options) *Service {
	return &Service{
		store:    st,
		engine:   NewEngine(st, opts.Engine),
		ingestor: worksheet.NewIngestor(opts.Vocabulary),
		limiter:  NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
	}
}

// Limiter returns the run limiter, for status reporting and shutdown.
func (s *Service) Limiter() *RunLimiter { return s.limiter }

// Ingestor returns the sheet ingestor.
func (s *Service) Ingestor() *worksheet.Ingestor { return s.ingestor }

// Plan is the model a sync would write, without writing it.
type Plan struct {
	CollectionID string            `json:"collectionId"`
	ResolvedID   string            `json:"resolvedId,omitempty"`
	Model        Model             `json:"model"`
	Counts       store.TableCounts `json:"counts"`
}

// Preview resolves and builds records for collectionID without writing.
// An unknown collection is not an error here; the name index fallback then
// has nothing to draw on.
func (s *Service) Preview(ctx context.Context, collectionID string, records []worksheet.RawAttributeRecord) (Plan, error) {
	if err := worksheet.ValidateAll(records); err != nil {
		return Plan{}, err
	}

	resolved, err := s.engine.ResolveCollection(ctx, collectionID)
	if err != nil && !errors.Is(err, ErrUnknownCollection) {
		return Plan{}, err
	}

	model, err := s.build(ctx, resolved, records)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		CollectionID: collectionID,
		ResolvedID:   resolved,
		Model:        model,
		Counts:       FlattenRows(model.Processes).Counts(),
	}, nil
}

// Sync validates, builds and writes records to collectionID.
// The returned result carries the build statistics even when err is set.
func (s *Service) Sync(ctx context.Context, collectionID string, records []worksheet.RawAttributeRecord) (SyncResult, error) {
	if err := worksheet.ValidateAll(records); err != nil {
		return SyncResult{CollectionID: collectionID}, err
	}

	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return SyncResult{CollectionID: collectionID}, err
	}
	defer release()

	// Resolution failures surface from the engine with full diagnostics.
	resolved, _ := s.engine.ResolveCollection(ctx, collectionID)

	model, err := s.build(ctx, resolved, records)
	if err != nil {
		return SyncResult{CollectionID: collectionID}, err
	}

	result, err := s.engine.Sync(ctx, collectionID, model.Processes)
	result.Unresolved = model.Unresolved
	result.Conflicts = len(model.Conflicts)
	result.Scopes = len(model.Scopes)

	if model.Unresolved > 0 {
		logging.WithFields(ctx, "run_id", result.RunID, "collection", collectionID).
			Warn("records dropped without a process number", "count", model.Unresolved)
	}
	return result, err
}

// ImportResult is the outcome of a workbook import.
type ImportResult struct {
	SyncResult
	Ingest worksheet.IngestReport `json:"ingest"`
}

// ImportWorkbook ingests every known sheet of wb and syncs the records.
func (s *Service) ImportWorkbook(ctx context.Context, collectionID string, wb worksheet.Workbook) (ImportResult, error) {
	records, report := s.ingestor.IngestWorkbook(wb)

	logging.WithFields(ctx, "collection", collectionID, "workbook", wb.Name).
		Info("workbook ingested",
			"sheets", len(report.Processed),
			"skipped", len(report.Skipped),
			"records", report.Records,
		)

	result, err := s.Sync(ctx, collectionID, records)
	return ImportResult{SyncResult: result, Ingest: report}, err
}

// CollectionView is the persisted content of a collection.
type CollectionView struct {
	RequestedID string            `json:"requestedId"`
	ResolvedID  string            `json:"resolvedId"`
	Processes   []ProcessEntity   `json:"processes"`
	Counts      store.TableCounts `json:"counts"`
}

// Collection reads a collection, resolving its id the same way Sync does.
func (s *Service) Collection(ctx context.Context, collectionID string) (CollectionView, error) {
	resolved, err := s.engine.ResolveCollection(ctx, collectionID)
	if err != nil {
		return CollectionView{}, err
	}
	rows, err := s.store.Snapshot(ctx, resolved)
	if err != nil {
		return CollectionView{}, fmt.Errorf("read collection: %w", err)
	}
	return CollectionView{
		RequestedID: collectionID,
		ResolvedID:  resolved,
		Processes:   EntitiesFromRows(rows),
		Counts:      rows.Counts(),
	}, nil
}

// RegisterCollection creates a collection.
func (s *Service) RegisterCollection(ctx context.Context, id string) (store.Collection, error) {
	return s.store.RegisterCollection(ctx, id)
}

// ListCollections lists the registered collections.
func (s *Service) ListCollections(ctx context.Context) ([]store.Collection, error) {
	return s.store.ListCollections(ctx)
}

// build resolves and folds records. When no record resolves through its
// own fields, the name index is seeded from the collection's persisted
// processes.
func (s *Service) build(ctx context.Context, resolvedID string, records []worksheet.RawAttributeRecord) (Model, error) {
	index := NewNameIndex()
	if resolvedID != "" && NeedsFallback(records) {
		rows, err := s.store.Snapshot(ctx, resolvedID)
		if err != nil {
			return Model{}, fmt.Errorf("load name index: %w", err)
		}
		for _, p := range rows.Processes {
			index.Add(p.ProcessName, p.ProcessNo)
		}
	}

	res := NewResolver(index).ResolveAll(records)
	logger := logging.WithFields(ctx, "collection", resolvedID)
	if res.ByNameIndex > 0 {
		logger.Info("process numbers recovered by name", "records", res.ByNameIndex)
	}
	return NewBuilder(logger).Build(res), nil
}

// NeedsFallback reports whether no process record of the batch resolves
// through its own fields, so the name index pass would run.
func NeedsFallback(records []worksheet.RawAttributeRecord) bool {
	r := NewResolver(nil)
	for _, rec := range records {
		if rec.Category == worksheet.CategoryProductScope {
			continue
		}
		if _, ok := r.Resolve(rec); ok {
			return false
		}
	}
	return true
}
