package pipeline

import (
	"context"
	"time"
)

// Supported declared media types.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
)

// Document is an uploaded document already persisted to request-scoped
// temporary storage. The backing file is owned by the request's artifact
// scope and removed when the request ends.
type Document struct {
	Path      string
	MediaType string
	Filename  string // diagnostic only
	Size      int64
}

// RasterizedPage is the image produced for one PDF page. The file is a
// request-scoped artifact; the orchestrator registers it for cleanup as
// soon as rasterization completes.
type RasterizedPage struct {
	Path      string
	PageIndex int
}

// Result is the terminal value of one extraction request.
type Result struct {
	Text          string
	Confidence    int
	PageProcessed *int // nil for non-PDF input
	TotalPages    *int // nil for non-PDF input
	Warning       string
	Duration      time.Duration
}

// ProgressEvent is an observational notification emitted during recognition.
// Consumers must never be required for correctness.
type ProgressEvent struct {
	Stage string
	At    time.Time
}

// EmitProgress sends an event without ever blocking the pipeline. Events
// are dropped when the consumer is absent or slow.
func EmitProgress(ch chan<- ProgressEvent, stage string) {
	if ch == nil {
		return
	}
	select {
	case ch <- ProgressEvent{Stage: stage, At: time.Now()}:
	default:
	}
}

// Options control a single extraction.
type Options struct {
	// Page is the 1-indexed page selection; nil means the first page.
	// Only meaningful for PDF input.
	Page *int
	// Progress optionally receives recognition progress events.
	Progress chan<- ProgressEvent
}

// PageCounter resolves a PDF's total page count from its metadata.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Rasterizer converts one PDF page into an image file under outDir.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page int, outDir string) (*RasterizedPage, error)
}

// OCRBackend recognizes text from raster image bytes. It never receives
// PDF bytes; PDFs are rasterized first.
type OCRBackend interface {
	Recognize(ctx context.Context, image []byte, progress chan<- ProgressEvent) (string, error)
}

// ArtifactRegistry tracks temporary artifacts for end-of-request cleanup.
type ArtifactRegistry interface {
	// Dir is the request-scoped directory new artifacts should be created in.
	Dir() string
	// Register records an artifact for guaranteed removal at request end.
	Register(path string)
}
