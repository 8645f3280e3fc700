package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/vitalis-health/vitalis/backend/internal/auth"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/zap"
)

// multipartOverhead is headroom for multipart framing on top of the
// document size limit.
const multipartOverhead = 1 << 20

// HTTPHandler exposes ReportService over JSON/HTTP.
type HTTPHandler struct {
	svc    *ReportService
	logger *zap.Logger
}

// NewHTTPHandler creates the handler set.
func NewHTTPHandler(svc *ReportService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{svc: svc, logger: logger}
}

// Routes registers every endpoint on a new mux. Auth is applied by the
// caller around the returned handler.
func (h *HTTPHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/reports/upload", h.handleUpload)
	mux.HandleFunc("POST /api/reports/text", h.handleText)
	mux.HandleFunc("GET /api/reports", h.handleList)
	mux.HandleFunc("GET /api/reports/search", h.handleSearch)
	mux.HandleFunc("GET /api/reports/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/reports/{id}", h.handleDelete)

	// Add health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.RequireAuth(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxUploadBytes()+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, formError(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, formError(err))
		return
	}

	mode, err := ParseMode(r.FormValue("mode"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.svc.AnalyzeDocument(r.Context(), UploadRequest{
		UserID:      claims.UID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Mode:        mode,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type textUploadRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

func (h *HTTPHandler) handleText(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.RequireAuth(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxUploadBytes()+multipartOverhead)
	var body textUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, formError(err))
		return
	}

	mode, err := ParseMode(body.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp, err := h.svc.AnalyzeDocument(r.Context(), UploadRequest{
		UserID:      claims.UID,
		Filename:    body.Filename,
		ContentType: "text/plain",
		Data:        []byte(body.Text),
		Mode:        mode,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	resp, err := h.svc.ListReports(r.Context(), int32(pageSize), q.Get("pageToken"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GetReportResponse{Success: true, Report: report})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.DeleteReport(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := search.SearchParams{
		Query:     q.Get("q"),
		Format:    q.Get("format"),
		RiskLevel: q.Get("riskLevel"),
	}
	params.MinScore, _ = strconv.Atoi(q.Get("minScore"))
	params.MaxScore, _ = strconv.Atoi(q.Get("maxScore"))
	params.Page, _ = strconv.Atoi(q.Get("page"))
	params.PageSize, _ = strconv.Atoi(q.Get("pageSize"))

	resp, err := h.svc.SearchReports(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestError marks malformed request bodies.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &extraction.DocumentError{
			Code:    extraction.ErrDocumentTooLarge,
			Message: "request body exceeds the upload limit",
		}
	}
	if errors.Is(err, http.ErrMissingFile) {
		return &requestError{status: http.StatusBadRequest, msg: `multipart field "file" is required`}
	}
	return &requestError{status: http.StatusBadRequest, msg: "malformed request body"}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) (int, string) {
	if docErr, ok := extraction.AsDocumentError(err); ok {
		switch docErr.Code {
		case extraction.ErrDocumentTooLarge:
			return http.StatusRequestEntityTooLarge, string(docErr.Code)
		case extraction.ErrUnsupportedFormat:
			return http.StatusUnsupportedMediaType, string(docErr.Code)
		case extraction.ErrRecognizerTransient:
			return http.StatusServiceUnavailable, string(docErr.Code)
		case extraction.ErrRecognizerFailed:
			return http.StatusBadGateway, string(docErr.Code)
		default:
			return http.StatusBadRequest, string(docErr.Code)
		}
	}

	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, "INVALID_REQUEST"
	case errors.Is(err, ErrInvalidMode):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, auth.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrArchiveDisabled), errors.Is(err, ErrSearchDisabled):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if docErr, ok := extraction.AsDocumentError(err); ok {
		msg = docErr.Message
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, UploadResponse{Success: false, Error: msg, ErrorCode: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
