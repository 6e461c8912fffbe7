/**
 * OCR Backend Adapter
 *
 * Text recognition via Tesseract through gosseract. The engine is an
 * opaque "image bytes in, text out" capability; it never sees PDF bytes.
 */

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"

	"github.com/docuflow/extract-service/internal/pipeline"
)

// Tesseract recognizes text from raster images.
type Tesseract struct {
	languages []string
	log       zerolog.Logger
}

// NewTesseract creates a Tesseract-backed OCR adapter.
func NewTesseract(languages []string, log zerolog.Logger) *Tesseract {
	return &Tesseract{
		languages: languages,
		log:       log,
	}
}

type recognition struct {
	text string
	err  error
}

// Recognize extracts text from image bytes. Progress events are purely
// observational and never block. Cancelling ctx returns promptly; the
// underlying recognition call cannot be interrupted mid-inference, so it
// drains in the background.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, progress chan<- pipeline.ProgressEvent) (string, error) {
	pipeline.EmitProgress(progress, "recognition_started")

	done := make(chan recognition, 1)
	go func() {
		done <- t.recognize(image, progress)
	}()

	select {
	case <-ctx.Done():
		return "", pipeline.NewOCRBackendFailed(ctx.Err())
	case res := <-done:
		if res.err != nil {
			return "", pipeline.NewOCRBackendFailed(res.err)
		}
		pipeline.EmitProgress(progress, "recognition_completed")
		return res.text, nil
	}
}

func (t *Tesseract) recognize(image []byte, progress chan<- pipeline.ProgressEvent) recognition {
	client := gosseract.NewClient()
	defer client.Close()

	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return recognition{err: fmt.Errorf("set languages: %w", err)}
		}
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return recognition{err: fmt.Errorf("set image: %w", err)}
	}
	pipeline.EmitProgress(progress, "image_loaded")

	text, err := client.Text()
	if err != nil {
		return recognition{err: fmt.Errorf("recognize text: %w", err)}
	}

	t.log.Debug().Int("image_bytes", len(image)).Int("text_length", len(text)).Msg("Tesseract recognition complete")
	return recognition{text: text}
}
