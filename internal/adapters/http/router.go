// Package httpadapter exposes the grading pipeline over HTTP: batch upload
// and listing, per-page results with operator corrections, tabular export
// and answer-key recognition.
package httpadapter

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/quizpix/quizpix/internal/core/domain"
	"github.com/quizpix/quizpix/internal/core/ports"
	"github.com/quizpix/quizpix/internal/core/usecase"
	"github.com/quizpix/quizpix/internal/observability/metrics"
)

// multipartMemoryLimit is the in-memory threshold for parsing uploads;
// larger parts spill to temp files.
const multipartMemoryLimit = 32 << 20

type Router struct {
	ingestUC  *usecase.IngestBatchUseCase
	correctUC *usecase.CorrectResultUseCase
	exportUC  *usecase.ExportBatchUseCase
	keysUC    *usecase.ImportAnswerKeysUseCase
	batches   ports.BatchRepository
	results   ports.ResultStore

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingestUC *usecase.IngestBatchUseCase,
	correctUC *usecase.CorrectResultUseCase,
	exportUC *usecase.ExportBatchUseCase,
	keysUC *usecase.ImportAnswerKeysUseCase,
	batches ports.BatchRepository,
	results ports.ResultStore,
) *Router {
	return &Router{
		ingestUC:  ingestUC,
		correctUC: correctUC,
		exportUC:  exportUC,
		keysUC:    keysUC,
		batches:   batches,
		results:   results,
	}
}

// WithMetrics attaches request metrics to the handler chain.
func (rt *Router) WithMetrics(service string, m *metrics.HTTPServerMetrics) *Router {
	rt.service = service
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/batches", rt.batchCollection)
	mux.HandleFunc("/v1/batches/", rt.batchSubtree)
	mux.HandleFunc("/v1/answer-keys/recognize", rt.recognizeKeys)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) batchCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadBatch(w, r)
	case http.MethodGet:
		rt.listBatches(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	uploads, err := readUploads(r.MultipartForm.File["sheets"])
	if err != nil {
		writeError(w, err)
		return
	}
	if len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'sheets' is required"})
		return
	}
	answerKeyText := r.FormValue("answer_keys")

	batch, err := rt.ingestUC.Upload(r.Context(), uploads, answerKeyText)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUploadPages(rt.service, batch.PageCount)
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func (rt *Router) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := rt.batches.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// batchSubtree dispatches /v1/batches/{id}[/results[/{page}]|/export].
func (rt *Router) batchSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch id is required"})
		return
	}
	batchID := parts[0]

	switch {
	case len(parts) == 1:
		rt.getBatch(w, r, batchID)
	case len(parts) == 2 && parts[1] == "results":
		rt.listResults(w, r, batchID)
	case len(parts) == 3 && parts[1] == "results":
		rt.correctResult(w, r, batchID, parts[2])
	case len(parts) == 2 && parts[1] == "export":
		rt.exportBatch(w, r, batchID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getBatch(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	batch, err := rt.batches.GetByID(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (rt *Router) listResults(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if _, err := rt.batches.GetByID(r.Context(), batchID); err != nil {
		writeError(w, err)
		return
	}
	results, err := rt.results.ListByBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (rt *Router) correctResult(w http.ResponseWriter, r *http.Request, batchID, pageRaw string) {
	if r.Method != http.MethodPatch {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	page, err := strconv.Atoi(pageRaw)
	if err != nil || page <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page must be a positive integer"})
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.correctUC.UpdateField(r.Context(), batchID, page, domain.CorrectionField(req.Field), req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) exportBatch(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	format := r.URL.Query().Get("format")
	file, err := rt.exportUC.Export(r.Context(), batchID, format)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		recordedFormat := format
		if recordedFormat == "" {
			recordedFormat = "csv"
		}
		rt.metrics.RecordExport(rt.service, recordedFormat)
	}

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

func (rt *Router) recognizeKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	uploads, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, err)
		return
	}
	if len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	text, err := rt.keysUC.Import(r.Context(), uploads)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer_key_text": text})
}

func readUploads(headers []*multipart.FileHeader) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", err)
		}
		uploads = append(uploads, domain.Upload{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
