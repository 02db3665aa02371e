package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

func incomingInspection() []worksheet.RawAttributeRecord {
	return []worksheet.RawAttributeRecord{
		rec("10", worksheet.ItemProcessNo, "10"),
		rec("10", worksheet.ItemProcessName, "Incoming Inspection"),
		rec("10", worksheet.ItemProcessDesc, "Raw material receiving"),
	}
}

// ============================================================================
// Sync
// ============================================================================

func TestService_IncomingInspectionScenario(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "cp26-p001")
	svc := NewService(st, Options{})

	result, err := svc.Sync(ctx, "cp26-p001", incomingInspection())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processes)

	snap, err := st.Snapshot(ctx, "cp26-p001")
	require.NoError(t, err)
	assert.Equal(t, []store.ProcessRow{{
		CollectionID: "cp26-p001",
		ProcessNo:    "10",
		ProcessName:  "Incoming Inspection",
		ProcessDesc:  "Raw material receiving",
		SortOrder:    0,
	}}, snap.Processes)
}

func TestService_LaterNameIgnored(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "cp26-p001")
	svc := NewService(st, Options{})

	records := append(incomingInspection(), rec("10", worksheet.ItemProcessName, "Final Inspection"))
	result, err := svc.Sync(ctx, "cp26-p001", records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	view, err := svc.Collection(ctx, "cp26-p001")
	require.NoError(t, err)
	require.Len(t, view.Processes, 1)
	assert.Equal(t, "Incoming Inspection", view.Processes[0].ProcessName)
}

func TestService_CountInvariant(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "X")
	svc := NewService(st, Options{})

	records := []worksheet.RawAttributeRecord{
		rec("10", worksheet.ItemProcessName, "Cutting"),
		rec("１０", worksheet.ItemDevice, "Saw"),
		rec("20", worksheet.ItemProcessName, "Welding"),
		rec("30", worksheet.ItemReactionPlan, "Stop line"),
		named("Nobody", worksheet.ItemDevice, "Lost"),
		rec("Your Plant", worksheet.ItemFunction, "Deliver parts"),
	}

	result, err := svc.Sync(ctx, "X", records)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processes)
	assert.Equal(t, 1, result.Unresolved)
	assert.Equal(t, 1, result.Scopes)

	n, err := st.Count(ctx, store.TableProcesses, "X")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestService_PersistsProcessNoAsWritten(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, "X"), Options{})

	result, err := svc.Sync(ctx, "X", []worksheet.RawAttributeRecord{
		rec("op10", worksheet.ItemProcessName, "Cutting"),
		rec("OP10", worksheet.ItemDevice, "Saw"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processes)
	assert.Equal(t, 1, result.Detectors)

	view, err := svc.Collection(ctx, "X")
	require.NoError(t, err)
	require.Len(t, view.Processes, 1)
	assert.Equal(t, "op10", view.Processes[0].ProcessNo)
	assert.Equal(t, []Detector{{Device: "Saw"}}, view.Processes[0].Detectors)
}

func TestService_ReplaceDoesNotAccumulate(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "X")
	svc := NewService(st, Options{})

	_, err := svc.Sync(ctx, "X", []worksheet.RawAttributeRecord{
		rec("10", worksheet.ItemProcessName, "Cutting"),
		rec("10", worksheet.ItemDevice, "Saw"),
		rec("20", worksheet.ItemProcessName, "Welding"),
	})
	require.NoError(t, err)

	_, err = svc.Sync(ctx, "X", []worksheet.RawAttributeRecord{
		rec("30", worksheet.ItemProcessName, "Painting"),
	})
	require.NoError(t, err)

	view, err := svc.Collection(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, store.TableCounts{Processes: 1}, view.Counts)
	assert.Equal(t, "30", view.Processes[0].ProcessNo)
}

func TestService_UnresolvableInputIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "X")
	svc := NewService(st, Options{})

	_, err := svc.Sync(ctx, "X", incomingInspection())
	require.NoError(t, err)
	before, err := st.Snapshot(ctx, "X")
	require.NoError(t, err)

	for name, records := range map[string][]worksheet.RawAttributeRecord{
		"empty":        nil,
		"unresolvable": {named("Unknown Step", worksheet.ItemDevice, "Saw")},
		"scopes only":  {rec("User", worksheet.ItemFailureEffect, "Noise")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Sync(ctx, "X", records)
			requireKind(t, err, KindInputEmpty)

			after, err := st.Snapshot(ctx, "X")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestService_CollectionCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t, "CP26-P001"), Options{})

	_, err := svc.Sync(ctx, "CP26-P001", incomingInspection())
	require.NoError(t, err)

	view, err := svc.Collection(ctx, "cp26-p001")
	require.NoError(t, err)
	assert.Equal(t, "CP26-P001", view.ResolvedID)
	assert.Equal(t, "cp26-p001", view.RequestedID)
	require.Len(t, view.Processes, 1)
	assert.Equal(t, "Incoming Inspection", view.Processes[0].ProcessName)
}

func TestService_NameFallbackUsesPersistedProcesses(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "X")
	svc := NewService(st, Options{})

	_, err := svc.Sync(ctx, "X", []worksheet.RawAttributeRecord{
		rec("10", worksheet.ItemProcessName, "Cutting"),
		rec("20", worksheet.ItemProcessName, "Welding"),
	})
	require.NoError(t, err)

	// A name-keyed sheet on its own carries no process numbers.
	result, err := svc.Sync(ctx, "X", []worksheet.RawAttributeRecord{
		named("cutting", worksheet.ItemDevice, "Saw"),
		named("Welding", worksheet.ItemDevice, "Torch"),
		named("Painting", worksheet.ItemDevice, "Gun"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processes)
	assert.Equal(t, 2, result.Detectors)
	assert.Equal(t, 1, result.Unresolved)

	snap, err := st.Snapshot(ctx, "X")
	require.NoError(t, err)
	require.Len(t, snap.Detectors, 2)
	assert.Equal(t, "10", snap.Detectors[0].ProcessNo)
	assert.Equal(t, "20", snap.Detectors[1].ProcessNo)
}

func TestService_RejectsUnknownSlots(t *testing.T) {
	svc := NewService(newStore(t, "X"), Options{})

	bad := worksheet.RawAttributeRecord{ProcessNo: "10", Category: worksheet.CategoryDetector, ItemCode: worksheet.ItemProcessName, Value: "x"}
	_, err := svc.Sync(context.Background(), "X", []worksheet.RawAttributeRecord{bad})
	assert.ErrorIs(t, err, worksheet.ErrUnknownSlot)
}

func TestService_TooManyRuns(t *testing.T) {
	svc := NewService(newStore(t, "X"), Options{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})

	release, err := svc.Limiter().Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	_, err = svc.Sync(context.Background(), "X", incomingInspection())
	assert.ErrorIs(t, err, ErrTooManyRuns)
}

// ============================================================================
// Preview and import
// ============================================================================

func TestService_PreviewDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "X")
	svc := NewService(st, Options{})

	plan, err := svc.Preview(ctx, "x", incomingInspection())
	require.NoError(t, err)
	assert.Equal(t, "X", plan.ResolvedID)
	assert.Equal(t, store.TableCounts{Processes: 1}, plan.Counts)

	n, err := st.Count(ctx, store.TableProcesses, "X")
	require.NoError(t, err)
	assert.Zero(t, n)

	plan, err = svc.Preview(ctx, "unregistered", incomingInspection())
	require.NoError(t, err)
	assert.Empty(t, plan.ResolvedID)
	assert.Len(t, plan.Model.Processes, 1)
}

func TestService_ImportWorkbook(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, "cp26-p001")
	svc := NewService(st, Options{})

	wb := worksheet.Workbook{Name: "cp.xlsx", Sheets: []worksheet.Sheet{
		{Name: "Cover", Rows: [][]string{{"Control Plan"}}},
		{Name: "A1", Rows: [][]string{{"Process No"}, {"10"}, {"20"}}},
		{Name: "A2", Rows: [][]string{{"Process No", "Process Name"}, {"10", "Incoming Inspection"}, {"20", "Cutting"}}},
		{Name: "A3", Rows: [][]string{{"Process No", "Desc"}, {"10", "Receive", "Check"}}},
		{Name: "B1", Rows: [][]string{{"Process Name", "Device"}, {"Cutting", "Saw"}}},
		{Name: "F1", Rows: [][]string{{"No", "Reaction"}, {"20", "Stop line"}}},
	}}

	result, err := svc.ImportWorkbook(ctx, "CP26-P001", wb)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cover"}, result.Ingest.Skipped)
	assert.Len(t, result.Ingest.Processed, 5)
	assert.Equal(t, 2, result.Processes)
	assert.Equal(t, 1, result.ReactionPlans)
	// B1 is keyed by name and is only resolvable through the fallback,
	// which does not run while numbered records resolve.
	assert.Equal(t, 1, result.Unresolved)

	view, err := svc.Collection(ctx, "cp26-p001")
	require.NoError(t, err)
	require.Len(t, view.Processes, 2)
	assert.Equal(t, []string{"Receive", "Check"}, view.Processes[0].ProcessDesc)
}

func TestService_RegisterAndList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newStore(t), Options{})

	_, err := svc.RegisterCollection(ctx, "b")
	require.NoError(t, err)
	_, err = svc.RegisterCollection(ctx, "a")
	require.NoError(t, err)
	_, err = svc.RegisterCollection(ctx, "a")
	assert.ErrorIs(t, err, store.ErrCollectionExists)

	list, err := svc.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
