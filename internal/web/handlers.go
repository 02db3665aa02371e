package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/logging"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/web/templates"
	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

// healthTimeout bounds the store probe in /healthz.
const healthTimeout = 2 * time.Second

// recordsRequest is the body of the sync and preview endpoints.
type recordsRequest struct {
	Records []worksheet.RawAttributeRecord `json:"records"`
}

type createCollectionRequest struct {
	ID string `json:"id"`
}

// render writes a component as an HTML fragment.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render fragment", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	collections, err := s.service.ListCollections(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	render(w, r, http.StatusOK, templates.Index(collections))
}

// handleHealth reports liveness, store reachability and run slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	if _, err := s.service.ListCollections(ctx); err != nil {
		logging.FromContext(ctx).Error("health check: store unreachable", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	writeJSON(w, r, code, map[string]any{
		"status": status,
		"runs":   s.service.Limiter().Status(),
	})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.service.ListCollections(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.CollectionList(collections))
		return
	}
	writeJSON(w, r, http.StatusOK, collections)
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	c, err := s.service.RegisterCollection(r.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// handleGetCollection returns the persisted content of a collection. The id
// resolves case-insensitively, the same way a sync does.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Collection(r.Context(), chi.URLParam(r, "collectionID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// handleSync replaces a collection with the posted records.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	result, err := s.service.Sync(r.Context(), chi.URLParam(r, "collectionID"), req.Records)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.SyncSummary(result))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handlePreview builds the posted records without writing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req recordsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, 0)
		return
	}

	plan, err := s.service.Preview(r.Context(), chi.URLParam(r, "collectionID"), req.Records)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.PlanSummary(plan))
		return
	}
	writeJSON(w, r, http.StatusOK, plan)
}

// handleImport reads an uploaded workbook and syncs it. The collection is
// the URL parameter or, for the import page, the "collection" form field.
// CSV uploads name their single sheet with the "sheet" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Sync.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(w, r, fmt.Errorf("%w: limit %d bytes", errFileTooBig, maxSize), 0)
			return
		}
		respondError(w, r, fmt.Errorf("%w: %w", errBadBody, err), 0)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	collectionID := chi.URLParam(r, "collectionID")
	if collectionID == "" {
		collectionID = r.FormValue("collection")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile, 0)
		return
	}
	defer file.Close()

	wb, err := worksheet.Read(header.Filename, r.FormValue("sheet"), file)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	result, err := s.service.ImportWorkbook(r.Context(), collectionID, wb)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.ImportSummary(result))
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// decodeJSON reads a JSON body of at most the upload size limit. Unknown
// slots surface as worksheet.ErrUnknownSlot; anything else is a malformed
// body.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Sync.MaxFileSize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, worksheet.ErrUnknownSlot) {
			return err
		}
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}
