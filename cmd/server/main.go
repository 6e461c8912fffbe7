/**
 * Extraction service entry point.
 *
 * HTTP service that accepts PDF and image uploads and returns recognized
 * text with a heuristic confidence score. PDF pages are rasterized via
 * pdftoppm; recognition runs on Tesseract.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/docuflow/extract-service/internal/config"
	"github.com/docuflow/extract-service/internal/logging"
	"github.com/docuflow/extract-service/internal/ocr"
	"github.com/docuflow/extract-service/internal/pdf"
	"github.com/docuflow/extract-service/internal/pipeline"
	"github.com/docuflow/extract-service/internal/server"
)

func main() {
	// .env is optional; the system environment is used as-is without one.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, "extract-service")

	if err := os.MkdirAll(cfg.TempDir, 0o700); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.TempDir).Msg("Failed to create temp directory")
	}

	// Probe the rasterization tool once; PDF support is reported on
	// /health but a missing tool only fails PDF requests, not startup.
	pdfSupported := true
	if _, err := exec.LookPath(cfg.RasterTool); err != nil {
		pdfSupported = false
		log.Warn().Str("tool", cfg.RasterTool).Msg("Rasterization tool not found, PDF extraction will fail")
	}

	rasterizer := pdf.NewRasterizer(cfg.RasterTool, cfg.RasterDPI, log)
	tesseract := ocr.NewTesseract(cfg.OCRLanguages, log)
	extractor := pipeline.NewExtractor(pdf.MetadataReader{}, rasterizer, tesseract, log)

	srv := server.New(cfg, log, extractor, server.Capabilities{
		OCR:            true,
		PDF:            pdfSupported,
		PageExtraction: pdfSupported,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Int64("max_upload_size", cfg.MaxUploadSize).
			Int("raster_dpi", cfg.RasterDPI).
			Strs("ocr_languages", cfg.OCRLanguages).
			Msg("Extraction service listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		if err := httpServer.Close(); err != nil {
			log.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	log.Info().Msg("Shutdown complete")
}
