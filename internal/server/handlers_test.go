package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuflow/extract-service/internal/config"
	"github.com/docuflow/extract-service/internal/pipeline"
)

type fakeExtractor struct {
	result  *pipeline.Result
	err     error
	lastDoc pipeline.Document
	lastOpt pipeline.Options
	calls   int
}

func (f *fakeExtractor) Extract(_ context.Context, _ pipeline.ArtifactRegistry, doc pipeline.Document, opts pipeline.Options) (*pipeline.Result, error) {
	f.calls++
	f.lastDoc = doc
	f.lastOpt = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MaxUploadSize:      10 * 1024 * 1024,
		AcceptedMediaTypes: []string{"application/pdf", "image/jpeg", "image/png"},
		TempDir:            t.TempDir(),
		RequestTimeout:     5 * time.Second,
	}
}

func newTestServer(t *testing.T, fake *fakeExtractor) (*Server, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	srv := New(cfg, zerolog.Nop(), fake, Capabilities{OCR: true, PDF: true, PageExtraction: true})
	return srv, cfg
}

// multipartUpload builds a request body with a "file" part carrying an
// explicit Content-Type, plus optional extra form values.
func multipartUpload(t *testing.T, filename, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doExtract(t *testing.T, srv *Server, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed
}

func intPtr(n int) *int { return &n }

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "extract-service", body["service"])

	caps, ok := body["capabilities"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, caps["ocr"])
	assert.Equal(t, true, caps["pdf"])
	assert.Equal(t, true, caps["page_extraction"])
}

func TestExtractSuccessPDF(t *testing.T) {
	fake := &fakeExtractor{result: &pipeline.Result{
		Text:          "Application Form",
		Confidence:    62,
		PageProcessed: intPtr(2),
		TotalPages:    intPtr(3),
	}}
	srv, _ := newTestServer(t, fake)

	body, ct := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{"page": "2"})
	rec := doExtract(t, srv, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	parsed := decodeBody(t, rec)
	assert.Equal(t, true, parsed["success"])
	assert.Equal(t, "Application Form", parsed["text"])
	assert.Equal(t, float64(16), parsed["length"])
	assert.Equal(t, float64(62), parsed["confidence"])
	assert.Equal(t, float64(2), parsed["page_processed"])
	assert.Equal(t, float64(3), parsed["total_pages"])
	assert.NotContains(t, parsed, "warning")

	require.NotNil(t, fake.lastOpt.Page)
	assert.Equal(t, 2, *fake.lastOpt.Page)
	assert.Equal(t, "application/pdf", fake.lastDoc.MediaType)
	assert.Equal(t, "doc.pdf", fake.lastDoc.Filename)
}

func TestExtractSuccessImageHasNullPages(t *testing.T) {
	fake := &fakeExtractor{result: &pipeline.Result{Text: "hello", Confidence: 12}}
	srv, _ := newTestServer(t, fake)

	body, ct := multipartUpload(t, "scan.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, nil)
	rec := doExtract(t, srv, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	parsed := decodeBody(t, rec)
	assert.Nil(t, parsed["page_processed"])
	assert.Nil(t, parsed["total_pages"])
	assert.Nil(t, fake.lastOpt.Page)
}

func TestExtractEmptyTextCarriesWarning(t *testing.T) {
	fake := &fakeExtractor{result: &pipeline.Result{
		Text:       "",
		Confidence: 0,
		Warning:    pipeline.WarningNoText,
	}}
	srv, _ := newTestServer(t, fake)

	body, ct := multipartUpload(t, "blank.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, nil)
	rec := doExtract(t, srv, body, ct)

	require.Equal(t, http.StatusOK, rec.Code)
	parsed := decodeBody(t, rec)
	assert.Equal(t, true, parsed["success"])
	assert.Equal(t, "", parsed["text"])
	assert.Equal(t, float64(0), parsed["confidence"])
	assert.Equal(t, pipeline.WarningNoText, parsed["warning"])
}

func TestExtractRejectsUnsupportedMediaType(t *testing.T) {
	fake := &fakeExtractor{}
	srv, _ := newTestServer(t, fake)

	body, ct := multipartUpload(t, "notes.txt", "text/plain", []byte("plain text"), nil)
	rec := doExtract(t, srv, body, ct)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	parsed := decodeBody(t, rec)
	assert.Equal(t, false, parsed["success"])
	assert.Contains(t, parsed["error"], "text/plain")
	assert.Zero(t, fake.calls, "pipeline must not run for rejected uploads")
}

func TestExtractRejectsMissingFileField(t *testing.T) {
	srv, _ := newTestServer(t, &fakeExtractor{})

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("page", "1"))
	require.NoError(t, w.Close())

	rec := doExtract(t, srv, body, w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractRejectsInvalidPageValues(t *testing.T) {
	for _, page := range []string{"0", "-2", "abc", "1.5"} {
		t.Run(page, func(t *testing.T) {
			fake := &fakeExtractor{}
			srv, _ := newTestServer(t, fake)

			body, ct := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"), map[string]string{"page": page})
			rec := doExtract(t, srv, body, ct)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, fake.calls)
		})
	}
}

func TestExtractRejectsOversizedUpload(t *testing.T) {
	fake := &fakeExtractor{}
	cfg := testConfig(t)
	cfg.MaxUploadSize = 2048
	srv := New(cfg, zerolog.Nop(), fake, Capabilities{})

	big := bytes.Repeat([]byte("%PDF-1.4 padding "), 1024) // ~17KB
	body, ct := multipartUpload(t, "big.pdf", "application/pdf", big, nil)
	rec := doExtract(t, srv, body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, fake.calls)
}

func TestExtractPipelineErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantInBody string
	}{
		{"invalid page", pipeline.NewInvalidPageRequest(5, 3), http.StatusBadRequest, "pages 1-3"},
		{"malformed document", pipeline.NewMalformedDocument(errors.New("bad xref")), http.StatusBadRequest, "could not be parsed"},
		{"content mismatch", pipeline.NewUnsupportedMediaType("declared image/png but content is application/pdf"), http.StatusUnsupportedMediaType, "image/png"},
		{"missing tool", pipeline.NewMissingDependency("pdftoppm"), http.StatusServiceUnavailable, "pdftoppm"},
		{"rasterization failed", pipeline.NewRasterizationFailed("exit 1", nil), http.StatusInternalServerError, "rasterization"},
		{"ocr failed", pipeline.NewOCRBackendFailed(errors.New("boom")), http.StatusInternalServerError, "recognition"},
		{"untyped error", errors.New("something odd"), http.StatusInternalServerError, "internal error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeExtractor{err: tc.err})

			body, ct := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"), nil)
			rec := doExtract(t, srv, body, ct)

			assert.Equal(t, tc.wantStatus, rec.Code)
			parsed := decodeBody(t, rec)
			assert.Equal(t, false, parsed["success"])
			assert.Contains(t, parsed["error"], tc.wantInBody)
		})
	}
}

// Every request, success or failure, must leave zero residual artifacts.
func TestExtractLeavesNoResidualArtifacts(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeExtractor
	}{
		{"success", &fakeExtractor{result: &pipeline.Result{Text: "ok", Confidence: 5}}},
		{"pipeline failure", &fakeExtractor{err: pipeline.NewOCRBackendFailed(errors.New("boom"))}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, cfg := newTestServer(t, tc.fake)

			body, ct := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4"), nil)
			doExtract(t, srv, body, ct)

			entries, err := os.ReadDir(cfg.TempDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

// The uploaded file is handed to the pipeline and removed after the request.
func TestExtractUploadLifecycle(t *testing.T) {
	fake := &fakeExtractor{result: &pipeline.Result{Text: "ok"}}
	srv, _ := newTestServer(t, fake)

	body, ct := multipartUpload(t, "doc.pdf", "application/pdf", []byte("%PDF-1.4 content"), nil)
	rec := doExtract(t, srv, body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, fake.calls)
	require.NotEmpty(t, fake.lastDoc.Path)
	_, statErr := os.Stat(fake.lastDoc.Path)
	assert.True(t, os.IsNotExist(statErr), "upload must be removed after the request")
}
