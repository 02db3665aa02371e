package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestErrorAlert_Escapes(t *testing.T) {
	html := render(t, ErrorAlert("<script>alert(1)</script>", "", "ERR000", ""))
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "alert-action")
	assert.NotContains(t, html, "alert-detail")
	assert.Contains(t, html, "Code: ERR000")
}

func TestErrorAlert_Detail(t *testing.T) {
	detail := `sync "cp26-p001" failed in verifying (verification_mismatch): expected [processes=1] actual [processes=0]`
	html := render(t, ErrorAlert("Saved rows do not match", "Retry the import", "SYNC004", detail))
	assert.Contains(t, html, `<p class="alert-action">Retry the import</p>`)
	assert.Contains(t, html, `<pre class="alert-detail">`)
	assert.Contains(t, html, "expected [processes=1] actual [processes=0]")
	assert.Contains(t, html, "&#34;cp26-p001&#34;")
}

func TestPlanSummary(t *testing.T) {
	plan := reconcile.Plan{
		CollectionID: "cp26-p001",
		Counts:       store.TableCounts{Processes: 1},
		Model: reconcile.Model{Processes: []reconcile.ProcessEntity{
			{ProcessNo: "op10", ProcessName: "Cutting"},
		}},
	}

	html := render(t, PlanSummary(plan))
	assert.Contains(t, html, "Preview for cp26-p001")
	assert.Contains(t, html, "<tr><td>op10</td><td>Cutting</td></tr>")
}

func TestImportSummary(t *testing.T) {
	result := reconcile.ImportResult{
		SyncResult: reconcile.SyncResult{RunID: "r1", ResolvedID: "CP26-P001", Processes: 2, Unresolved: 1},
		Ingest: worksheet.IngestReport{
			Processed: []worksheet.SheetSummary{{Sheet: "공정명", Code: "A2", Pairs: 2}},
			Skipped:   []string{"Cover"},
		},
	}

	html := render(t, ImportSummary(result))
	assert.Contains(t, html, "공정명 (A2): 2 values")
	assert.Contains(t, html, "Skipped: Cover")
	assert.Contains(t, html, "CP26-P001")
	assert.Contains(t, html, "<dt>processes</dt><dd>2</dd>")
	assert.Contains(t, html, "1 records had no process number")
}

func TestCollectionList(t *testing.T) {
	assert.Contains(t, render(t, CollectionList(nil)), "No collections")

	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	html := render(t, Index([]store.Collection{{ID: "cp26-p001", CreatedAt: created}}))
	assert.Contains(t, html, "<option>cp26-p001</option>")
	assert.Contains(t, html, "2026-03-01 09:30")
	assert.Contains(t, html, `<a href="/api/collections/cp26-p001">cp26-p001</a> <time>`)
	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
}
