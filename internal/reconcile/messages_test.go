package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "input empty", err: &SyncError{Kind: KindInputEmpty}, wantCode: "SYNC001"},
		{name: "unknown collection", err: &SyncError{Kind: KindUnknownCollection}, wantCode: "SYNC002"},
		{name: "transaction failure", err: &SyncError{Kind: KindTransactionFailure, Err: errors.New("connection refused")}, wantCode: "SYNC003"},
		{name: "verification mismatch", err: &SyncError{Kind: KindVerificationMismatch}, wantCode: "SYNC004"},
		{name: "invalid entity", err: &SyncError{Kind: KindInvalidEntity}, wantCode: "SYNC005"},
		{name: "wrapped sync error", err: fmt.Errorf("import: %w", &SyncError{Kind: KindUnknownCollection}), wantCode: "SYNC002"},
		{name: "unknown slot", err: fmt.Errorf("record 3: %w", worksheet.ErrUnknownSlot), wantCode: "VAL001"},
		{name: "too many runs", err: ErrTooManyRuns, wantCode: "RUN001"},
		{name: "unsupported format", err: fmt.Errorf("%w: x.pdf", worksheet.ErrUnsupportedFormat), wantCode: "FILE002"},
		{name: "serialization conflict", err: errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), wantCode: "DB003"},
		{name: "case insensitive", err: errors.New("dial tcp: CONNECTION REFUSED"), wantCode: "DB002"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(&SyncError{Kind: KindTransactionFailure})
	want := "The import was rolled back; existing data is unchanged (Code: SYNC003). Please try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil error is not user facing")
	}
	if !IsUserFacing(ErrTooManyRuns) {
		t.Error("ErrTooManyRuns should be user facing")
	}
	if IsUserFacing(errors.New("random internal error xyz")) {
		t.Error("unknown error should not be user facing")
	}
}

func TestKindMessagesCoverEveryKind(t *testing.T) {
	kinds := []ErrorKind{KindInputEmpty, KindInvalidEntity, KindUnknownCollection, KindTransactionFailure, KindVerificationMismatch}
	for _, k := range kinds {
		if _, ok := kindMessages[k]; !ok {
			t.Errorf("no message for kind %s", k)
		}
		if k.sentinel() == nil {
			t.Errorf("no sentinel for kind %s", k)
		}
	}
}

func TestSyncError_Is(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &SyncError{Kind: KindTransactionFailure, Err: cause})

	if !errors.Is(err, ErrTransactionFailure) {
		t.Error("expected ErrTransactionFailure")
	}
	if errors.Is(err, ErrVerificationMismatch) {
		t.Error("unexpected ErrVerificationMismatch")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if KindOf(err) != KindTransactionFailure {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(cause) != "" {
		t.Errorf("KindOf(plain) = %q, want empty", KindOf(cause))
	}
}

func TestSyncError_ErrorReportsCounts(t *testing.T) {
	err := &SyncError{
		Kind:         KindTransactionFailure,
		Phase:        PhaseVerifying,
		CollectionID: "CP26-P001",
		ResolvedID:   "cp26-p001",
		Expected:     store.TableCounts{Processes: 3},
		Err:          errors.New("no rows persisted"),
	}
	want := `sync "CP26-P001": ` + ErrTransactionFailure.Error() +
		` (resolved "cp26-p001"): expected [processes=3 detectors=0 control_items=0 control_methods=0 reaction_plans=0]` +
		` actual [processes=0 detectors=0 control_items=0 control_methods=0 reaction_plans=0]: no rows persisted`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	early := &SyncError{Kind: KindTransactionFailure, Phase: PhaseTransacting, CollectionID: "cp", Expected: store.TableCounts{Processes: 1}}
	if got := early.Error(); strings.Contains(got, "actual") {
		t.Errorf("Error() before verifying = %q, should not report actual counts", got)
	}
}
