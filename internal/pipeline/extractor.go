/**
 * Extraction Orchestrator
 *
 * Drives one document through the pipeline: media classification, page
 * resolution and validation for PDFs, rasterization, text recognition,
 * and confidence scoring. Artifact disposal is owned by the request's
 * artifact scope, not by this component.
 */

package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// WarningNoText marks a successful extraction that found no text. OCR
// legitimately finds nothing on blank or low-quality scans; this is a
// success with confidence 0, never an error.
const WarningNoText = "no text detected in document"

// Extractor orchestrates the extraction pipeline.
type Extractor struct {
	pages  PageCounter
	raster Rasterizer
	ocr    OCRBackend
	log    zerolog.Logger
}

// NewExtractor creates an extraction orchestrator.
func NewExtractor(pages PageCounter, raster Rasterizer, ocr OCRBackend, log zerolog.Logger) *Extractor {
	return &Extractor{
		pages:  pages,
		raster: raster,
		ocr:    ocr,
		log:    log,
	}
}

// Extract runs the pipeline for one uploaded document. Artifacts created
// along the way are registered with reg; their removal is guaranteed by
// the caller's scope release, on every exit path.
func (e *Extractor) Extract(ctx context.Context, reg ArtifactRegistry, doc Document, opts Options) (*Result, error) {
	start := time.Now()
	log := e.requestLogger(ctx, doc)

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("read uploaded document: %w", err)
	}

	// The boundary only forwards accepted declared types, but the content
	// must actually match the declaration before any work happens.
	if detected := DetectMediaType(data); detected != "" && detected != doc.MediaType {
		log.Warn().
			Str("declared", doc.MediaType).
			Str("detected", detected).
			Msg("Declared media type contradicts file content")
		return nil, NewUnsupportedMediaType(
			fmt.Sprintf("declared %s but content is %s", doc.MediaType, detected))
	}

	var (
		text          string
		pageProcessed *int
		totalPages    *int
	)

	switch doc.MediaType {
	case MediaTypeJPEG, MediaTypePNG:
		// Images go straight to recognition; no page concept applies.
		log.Debug().Int("bytes", len(data)).Msg("Recognizing image upload")
		text, err = e.ocr.Recognize(ctx, data, opts.Progress)
		if err != nil {
			return nil, e.wrapOCRError(err)
		}

	case MediaTypePDF:
		text, pageProcessed, totalPages, err = e.extractFromPDF(ctx, log, reg, doc, opts)
		if err != nil {
			return nil, err
		}

	default:
		return nil, NewUnsupportedMediaType(doc.MediaType)
	}

	result := &Result{
		Text:          strings.TrimSpace(text),
		PageProcessed: pageProcessed,
		TotalPages:    totalPages,
		Duration:      time.Since(start),
	}

	if result.Text == "" {
		result.Confidence = 0
		result.Warning = WarningNoText
		log.Info().Dur("duration", result.Duration).Msg("Extraction complete, no text detected")
		return result, nil
	}

	result.Confidence = Score(result.Text)
	log.Info().
		Int("length", len(result.Text)).
		Int("confidence", result.Confidence).
		Dur("duration", result.Duration).
		Msg("Extraction complete")

	return result, nil
}

// extractFromPDF resolves and validates the page selection, rasterizes the
// effective page and recognizes its text.
func (e *Extractor) extractFromPDF(ctx context.Context, log zerolog.Logger, reg ArtifactRegistry, doc Document, opts Options) (string, *int, *int, error) {
	total, err := e.pages.PageCount(doc.Path)
	if err != nil {
		return "", nil, nil, err
	}

	page := 1
	if opts.Page != nil {
		page = *opts.Page
	}
	if page < 1 || page > total {
		log.Warn().Int("requested_page", page).Int("total_pages", total).Msg("Page selection out of range")
		return "", nil, nil, NewInvalidPageRequest(page, total)
	}

	log.Debug().Int("page", page).Int("total_pages", total).Msg("Rasterizing PDF page")
	rasterized, err := e.raster.Rasterize(ctx, doc.Path, page, reg.Dir())
	if err != nil {
		if _, ok := AsError(err); ok {
			return "", nil, nil, err
		}
		return "", nil, nil, NewRasterizationFailed("", err)
	}
	reg.Register(rasterized.Path)

	image, err := os.ReadFile(rasterized.Path)
	if err != nil {
		return "", nil, nil, NewRasterizationFailed("rasterized page unreadable", err)
	}

	log.Debug().Int("page", page).Int("bytes", len(image)).Msg("Recognizing rasterized page")
	text, err := e.ocr.Recognize(ctx, image, opts.Progress)
	if err != nil {
		return "", nil, nil, e.wrapOCRError(err)
	}

	return text, &page, &total, nil
}

// wrapOCRError preserves typed backend errors and wraps everything else.
func (e *Extractor) wrapOCRError(err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return NewOCRBackendFailed(err)
}

// requestLogger prefers the request-scoped logger carried on the context.
func (e *Extractor) requestLogger(ctx context.Context, doc Document) zerolog.Logger {
	log := e.log
	if ctxLog := zerolog.Ctx(ctx); ctxLog.GetLevel() != zerolog.Disabled {
		log = *ctxLog
	}
	return log.With().Str("filename", doc.Filename).Str("media_type", doc.MediaType).Logger()
}
