package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/config"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/reconcile"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store/memstore"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 10 * time.Second, ShutdownTimeout: time.Second},
		Sync:   config.SyncConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, ids ...string) (*Server, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	for _, id := range ids {
		_, err := st.RegisterCollection(context.Background(), id)
		require.NoError(t, err)
	}
	srv := NewServer(reconcile.NewService(st, reconcile.Options{}), cfg)
	t.Cleanup(srv.Close)
	return srv, st
}

func do(srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

const incomingInspection = `{"records":[
	{"processNo":"10","category":"processInfo","itemCode":"A1","value":"10"},
	{"processNo":"10","category":"processInfo","itemCode":"A2","value":"Incoming Inspection"},
	{"processNo":"10","category":"processInfo","itemCode":"A3","value":"Raw material receiving"},
	{"processNo":"10","category":"processInfo","itemCode":"A2","value":"Something Else"}
]}`

// ============================================================================
// Collections
// ============================================================================

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestCreateAndListCollections(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, http.MethodPost, "/api/collections", `{"id":"cp26-p001"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(srv, http.MethodPost, "/api/collections", `{"id":"cp26-p001"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DB001", decodeError(t, rec).Code)

	rec = do(srv, http.MethodPost, "/api/collections", `{"id":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL003", decodeError(t, rec).Code)

	rec = do(srv, http.MethodGet, "/api/collections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []store.Collection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "cp26-p001", list[0].ID)
}

// ============================================================================
// Sync
// ============================================================================

func TestSync_ThenReadWithOtherCase(t *testing.T) {
	srv, st := newTestServer(t, testConfig(), "CP26-P001")

	rec := do(srv, http.MethodPost, "/api/collections/CP26-P001/sync", incomingInspection)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result reconcile.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Processes)
	assert.Equal(t, 1, result.Conflicts)

	snap, err := st.Snapshot(context.Background(), "CP26-P001")
	require.NoError(t, err)
	require.Len(t, snap.Processes, 1)
	assert.Equal(t, "Incoming Inspection", snap.Processes[0].ProcessName)
	assert.Equal(t, "Raw material receiving", snap.Processes[0].ProcessDesc)

	rec = do(srv, http.MethodGet, "/api/collections/cp26-p001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view reconcile.CollectionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "CP26-P001", view.ResolvedID)
	require.Len(t, view.Processes, 1)
	assert.Equal(t, "10", view.Processes[0].ProcessNo)
}

func TestSync_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown collection", "/api/collections/nope/sync", incomingInspection, http.StatusNotFound, "SYNC002"},
		{"empty records", "/api/collections/X/sync", `{"records":[]}`, http.StatusUnprocessableEntity, "SYNC001"},
		{"unknown slot", "/api/collections/X/sync", `{"records":[{"processNo":"10","category":"detector","itemCode":"A2","value":"x"}]}`, http.StatusUnprocessableEntity, "VAL001"},
		{"malformed body", "/api/collections/X/sync", `{"records":`, http.StatusBadRequest, "VAL002"},
		{"unknown field", "/api/collections/X/sync", `{"rows":[]}`, http.StatusBadRequest, "VAL002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, testConfig(), "X")

			rec := do(srv, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestSync_ErrorCarriesKindAndPhase(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := do(srv, http.MethodPost, "/api/collections/nope/sync", incomingInspection)
	resp := decodeError(t, rec)
	assert.Equal(t, "UnknownCollection", resp.Kind)
	assert.Equal(t, "resolving", resp.Phase)
	assert.Equal(t, "nope", resp.CollectionID)
	assert.Empty(t, resp.ResolvedID)
	assert.Contains(t, resp.Detail, "unknown collection")
}

// failingStore breaks one part of a memstore.
type failingStore struct {
	*memstore.Store
	replaceErr  error
	processSkew int
}

func (f *failingStore) Replace(ctx context.Context, collectionID string, rows store.RowSet) (store.TableCounts, error) {
	if f.replaceErr != nil {
		return store.TableCounts{}, f.replaceErr
	}
	return f.Store.Replace(ctx, collectionID, rows)
}

func (f *failingStore) Count(ctx context.Context, table store.Table, collectionID string) (int, error) {
	n, err := f.Store.Count(ctx, table, collectionID)
	if table == store.TableProcesses {
		n += f.processSkew
	}
	return n, err
}

func newFailingServer(t *testing.T, fs *failingStore) *Server {
	t.Helper()
	_, err := fs.RegisterCollection(context.Background(), "cp26-p001")
	require.NoError(t, err)
	srv := NewServer(reconcile.NewService(fs, reconcile.Options{}), testConfig())
	t.Cleanup(srv.Close)
	return srv
}

func TestSync_TransactionFailureReportsRun(t *testing.T) {
	srv := newFailingServer(t, &failingStore{
		Store:      memstore.New(),
		replaceErr: errors.New("connection reset by peer"),
	})

	rec := do(srv, http.MethodPost, "/api/collections/CP26-P001/sync", incomingInspection)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "SYNC003", resp.Code)
	assert.Equal(t, "TransactionFailure", resp.Kind)
	assert.Equal(t, "CP26-P001", resp.CollectionID)
	assert.Equal(t, "cp26-p001", resp.ResolvedID)
	require.NotNil(t, resp.Expected)
	assert.Equal(t, 1, resp.Expected.Processes)
	require.NotNil(t, resp.Actual)
	assert.Contains(t, resp.Detail, "connection reset by peer")
}

func TestSync_VerificationMismatchReportsCounts(t *testing.T) {
	srv := newFailingServer(t, &failingStore{Store: memstore.New(), processSkew: 1})

	rec := do(srv, http.MethodPost, "/api/collections/cp26-p001/sync", incomingInspection)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "VerificationMismatch", resp.Kind)
	assert.Equal(t, "cp26-p001", resp.ResolvedID)
	require.NotNil(t, resp.Expected)
	require.NotNil(t, resp.Actual)
	assert.Equal(t, 1, resp.Expected.Processes)
	assert.Equal(t, 2, resp.Actual.Processes)
	assert.Contains(t, resp.Detail, "expected [processes=1")
	assert.Contains(t, resp.Detail, "actual [processes=2")

	rec = do(srv, http.MethodPost, "/api/collections/cp26-p001/sync", incomingInspection, "HX-Request", "true")
	assert.Contains(t, rec.Body.String(), "alert-detail")
	assert.Contains(t, rec.Body.String(), "Code: SYNC004")
}

func TestSync_HTMXFragments(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), "X")

	rec := do(srv, http.MethodPost, "/api/collections/X/sync", incomingInspection, "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<dt>processes</dt><dd>1</dd>")

	rec = do(srv, http.MethodPost, "/api/collections/missing/sync", incomingInspection, "HX-Request", "true")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Code: SYNC002")
}

func TestPreview_DoesNotWrite(t *testing.T) {
	srv, st := newTestServer(t, testConfig(), "X")

	rec := do(srv, http.MethodPost, "/api/collections/X/preview", incomingInspection)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan reconcile.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, 1, plan.Counts.Processes)

	n, err := st.Count(context.Background(), store.TableProcesses, "X")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ============================================================================
// Import
// ============================================================================

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func doMultipart(srv *Server, path string, body *bytes.Buffer, contentType string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestImport_CSV(t *testing.T) {
	srv, st := newTestServer(t, testConfig(), "cp26-p001")

	body, ct := multipartBody(t, map[string]string{"sheet": "A2"}, "names.csv", "Process No,Process Name\n10,Cutting\n20,Welding\n")
	rec := doMultipart(srv, "/api/collections/CP26-P001/import", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result reconcile.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Processes)
	require.Len(t, result.Ingest.Processed, 1)
	assert.Equal(t, "A2", result.Ingest.Processed[0].Code)

	n, err := st.Count(context.Background(), store.TableProcesses, "cp26-p001")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_FormCollectionAndHTMX(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), "X")

	body, ct := multipartBody(t, map[string]string{"collection": "X"}, "A1.csv", "No\n10\n20\n")
	rec := doMultipart(srv, "/api/import", body, ct, "HX-Request", "true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "A1 (A1): 2 values")
}

func TestImport_Errors(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), "X")

	body, ct := multipartBody(t, nil, "", "")
	rec := doMultipart(srv, "/api/collections/X/import", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)

	body, ct = multipartBody(t, nil, "plan.pdf", "%PDF")
	rec = doMultipart(srv, "/api/collections/X/import", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)

	body, ct = multipartBody(t, nil, "cover.csv", "Control Plan\n")
	rec = doMultipart(srv, "/api/collections/X/import", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "SYNC001", decodeError(t, rec).Code)
}

// ============================================================================
// Middleware wiring
// ============================================================================

func TestRateLimit_SyncRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, SyncLimit: 1}
	srv, _ := newTestServer(t, cfg, "X")

	rec := do(srv, http.MethodPost, "/api/collections/X/sync", incomingInspection)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodPost, "/api/collections/X/sync", incomingInspection)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads are not bound by the sync limit.
	rec = do(srv, http.MethodGet, "/api/collections/X", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_GuardsWrites(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	srv, _ := newTestServer(t, cfg, "X")

	rec := do(srv, http.MethodPost, "/api/collections/X/sync", incomingInspection)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodPost, "/api/collections/X/sync", incomingInspection, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(srv, http.MethodGet, "/api/collections", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("a"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(&reconcile.SyncError{Kind: reconcile.KindVerificationMismatch}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&reconcile.SyncError{Kind: reconcile.KindTransactionFailure}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&reconcile.SyncError{Kind: reconcile.KindInvalidEntity}))
	assert.Equal(t, http.StatusTooManyRequests, statusFor(reconcile.ErrTooManyRuns))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(errFileTooBig))
}
