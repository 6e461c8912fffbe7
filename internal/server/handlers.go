package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/docuflow/extract-service/internal/artifacts"
	"github.com/docuflow/extract-service/internal/pipeline"
)

// multipartMemoryLimit bounds the in-memory part of multipart parsing;
// larger uploads spill to disk and are still subject to MaxBytesReader.
const multipartMemoryLimit = 4 * 1024 * 1024

type extractResponse struct {
	Success       bool   `json:"success"`
	Text          string `json:"text"`
	Length        int    `json:"length"`
	Confidence    int    `json:"confidence"`
	PageProcessed *int   `json:"page_processed"`
	TotalPages    *int   `json:"total_pages"`
	Warning       string `json:"warning,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type healthResponse struct {
	Status       string       `json:"status"`
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
}

// handleHealth reports service identity and capability flags. The flags
// are computed once at startup; this read never blocks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Service:      "extract-service",
		Version:      Version,
		Capabilities: s.capabilities,
	})
}

// handleExtract accepts a multipart upload (field "file", optional form
// value "page") and runs the extraction pipeline on it.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log := s.log.With().Str("request_id", uuid.NewString()).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			log.Warn().Int64("limit", s.cfg.MaxUploadSize).Msg("Upload exceeds size limit")
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file exceeds the size limit")
			return
		}
		log.Warn().Err(err).Msg("Malformed multipart request")
		writeError(w, http.StatusBadRequest, "malformed multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	mediaType := declaredMediaType(header.Header.Get("Content-Type"))
	if !s.cfg.Accepts(mediaType) {
		log.Warn().Str("media_type", mediaType).Str("filename", header.Filename).Msg("Rejected unsupported media type")
		writeError(w, http.StatusUnsupportedMediaType,
			"unsupported media type: "+mediaType+", accepted: "+strings.Join(s.cfg.AcceptedMediaTypes, ", "))
		return
	}

	var pageSelection *int
	if raw := r.FormValue("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		pageSelection = &page
	}

	scope, err := artifacts.NewScope(s.cfg.TempDir, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create artifact scope")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer scope.Release()

	path, err := scope.SaveUpload("upload"+extensionFor(mediaType), file)
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist upload")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	ctx = log.WithContext(ctx)

	result, err := s.extractor.Extract(ctx, scope, pipeline.Document{
		Path:      path,
		MediaType: mediaType,
		Filename:  header.Filename,
		Size:      header.Size,
	}, pipeline.Options{Page: pageSelection})
	if err != nil {
		s.writePipelineError(w, log, err)
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Success:       true,
		Text:          result.Text,
		Length:        len(result.Text),
		Confidence:    result.Confidence,
		PageProcessed: result.PageProcessed,
		TotalPages:    result.TotalPages,
		Warning:       result.Warning,
	})
}

// writePipelineError maps pipeline errors onto HTTP statuses: client-input
// errors are 4xx with the actionable message verbatim; environment and
// backend errors are 5xx and logged with full diagnostic detail.
func (s *Server) writePipelineError(w http.ResponseWriter, log zerolog.Logger, err error) {
	perr, ok := pipeline.AsError(err)
	if !ok {
		log.Error().Err(err).Msg("Extraction failed with untyped error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := statusFor(perr)
	evt := log.Warn()
	if perr.Class() == pipeline.ClassBackend {
		evt = log.Error()
	}
	evt.Err(err).Str("code", string(perr.Code)).Int("status", status).Msg("Extraction failed")

	writeError(w, status, perr.Message)
}

func statusFor(perr *pipeline.Error) int {
	switch perr.Code {
	case pipeline.CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case pipeline.CodeInvalidPageRequest, pipeline.CodeMalformedDocument:
		return http.StatusBadRequest
	case pipeline.CodeMissingDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// declaredMediaType strips parameters from the part's Content-Type header.
func declaredMediaType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mediaType
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case pipeline.MediaTypePDF:
		return ".pdf"
	case pipeline.MediaTypeJPEG:
		return ".jpg"
	case pipeline.MediaTypePNG:
		return ".png"
	default:
		return ".bin"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}
