package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dialoguegen/api/internal/dialogue"
	"dialoguegen/api/internal/search"
	"dialoguegen/api/internal/store"
	"dialoguegen/api/internal/util"
	"dialoguegen/api/internal/validation"

	"github.com/sirupsen/logrus"
)

const (
	modeHeader          = "X-Validation-Mode"
	defaultMaxBodyBytes = 8 << 20
)

type HTTPServer struct {
	service      *Service
	corsOrigin   string
	maxBodyBytes int64
}

func NewHTTPServer(service *Service, corsOrigin string, maxBodyBytes int64) *HTTPServer {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, maxBodyBytes: maxBodyBytes}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks, ready := s.service.Ready(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ready {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ready,
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/dialogues/graph" {
		s.handleGraph(w, r)
		return
	}

	parts := splitPath(r.URL.EscapedPath())
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "dialogues" {
		if len(parts) == 2 && r.Method == http.MethodGet {
			items, err := s.service.ListDocuments(r.Context())
			if err != nil {
				s.writeFailure(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
			return
		}
		if len(parts) >= 3 {
			documentID, err := url.PathUnescape(parts[2])
			if err == nil {
				err = store.ValidateID(documentID)
			}
			if err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT_ID", "Invalid document id", nil)
				return
			}
			s.handleDialogue(w, r, documentID, parts)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleDialogue(w http.ResponseWriter, r *http.Request, documentID string, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodGet {
		view, err := s.service.GetDocument(r.Context(), documentID)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodPut {
		input, ok := s.decodeSaveInput(w, r)
		if !ok {
			return
		}
		result, err := s.service.SaveDocument(r.Context(), documentID, input, modeOverride(r))
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if len(parts) == 4 && parts[3] == "validate" && r.Method == http.MethodPost {
		input, ok := s.decodeSaveInput(w, r)
		if !ok {
			return
		}
		outcome, err := s.service.ValidateDocument(r.Context(), documentID, input, modeOverride(r))
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// decodeSaveInput reads {document, revision, validationMode}. A body that is
// itself the deprecated {nodes, edges} shape is passed through as the
// document so the gate rejects it explicitly.
func (s *HTTPServer) decodeSaveInput(w http.ResponseWriter, r *http.Request) (SaveDocumentInput, bool) {
	raw, err := s.readBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return SaveDocumentInput{}, false
	}
	var input SaveDocumentInput
	if err := json.Unmarshal(raw, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return SaveDocumentInput{}, false
	}
	if len(input.Document) == 0 && dialogue.IsLegacyGraphPayload(raw) {
		input.Document = raw
	}
	return input, true
}

func (s *HTTPServer) handleGraph(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readBody(w, r)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	var payload dialogue.GraphPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	result, err := s.service.SaveGraph(r.Context(), payload, modeOverride(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := search.Query{
		Text:       strings.TrimSpace(values.Get("q")),
		DocumentID: strings.TrimSpace(values.Get("documentId")),
		Limit:      20,
	}
	if q.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	if rawLimit := strings.TrimSpace(values.Get("limit")); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			q.Limit = min(parsed, 100)
		}
	}
	if rawOffset := strings.TrimSpace(values.Get("offset")); rawOffset != "" {
		if parsed, err := strconv.Atoi(rawOffset); err == nil && parsed >= 0 {
			q.Offset = parsed
		}
	}
	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), q))
}

// writeFailure renders conflicts and rejections with their dedicated bodies
// and everything else through mapError.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		current := viewOf(conflict.Current)
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":          "REVISION_CONFLICT",
			"error":         conflict.Error(),
			"document":      current.Document,
			"schemaVersion": current.SchemaVersion,
			"revision":      current.Revision,
		})
		return
	}
	var rejected *validation.RejectedError
	if errors.As(err, &rejected) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":             rejected.Code,
			"error":            rejected.Message,
			"message":          rejected.Message,
			"validationReport": rejected.Report,
		})
		return
	}

	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.service.logger.WithFields(logrus.Fields{
			"request_id": requestIDFrom(r.Context()),
			"error":      err,
		}).Error("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
}

func (s *HTTPServer) writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit), nil)
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not read body", nil)
}

func modeOverride(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(modeHeader)); header != "" {
		return header
	}
	return strings.TrimSpace(r.URL.Query().Get("mode"))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewID("req")
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.service.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Validation-Mode")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
