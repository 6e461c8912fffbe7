/**
 * Page Rasterizer Adapter
 *
 * Converts a single PDF page into a PNG by invoking poppler's pdftoppm as
 * a subprocess. Arguments are passed as a discrete vector; no shell is
 * ever involved, so document paths cannot inject commands.
 */

package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/docuflow/extract-service/internal/pipeline"
)

// Rasterizer renders single PDF pages via an external tool.
type Rasterizer struct {
	tool string
	dpi  int
	log  zerolog.Logger
}

// NewRasterizer creates a rasterizer using the given tool (normally
// "pdftoppm") at a fixed resolution. Around 150 DPI balances recognition
// accuracy against processing time.
func NewRasterizer(tool string, dpi int, log zerolog.Logger) *Rasterizer {
	return &Rasterizer{
		tool: tool,
		dpi:  dpi,
		log:  log,
	}
}

// Rasterize renders exactly one page into outDir and returns the produced
// image. The output file becomes a request-scoped artifact owned by the
// caller.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, page int, outDir string) (*pipeline.RasterizedPage, error) {
	prefix := filepath.Join(outDir, fmt.Sprintf("page-%d", page))

	args := []string{
		"-png",
		"-r", strconv.Itoa(r.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		pdfPath,
		prefix,
	}

	cmd := exec.CommandContext(ctx, r.tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	r.log.Debug().Str("tool", r.tool).Int("page", page).Int("dpi", r.dpi).Msg("Invoking rasterizer")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, pipeline.NewRasterizationFailed("cancelled", ctxErr)
		}
		// Distinguish "tool not installed" (deployment defect) from "tool
		// failed on this input" (data defect).
		if r.toolMissing(err) {
			r.log.Error().Str("tool", r.tool).Msg("Rasterization tool not found on host")
			return nil, pipeline.NewMissingDependency(r.tool)
		}
		detail := strings.TrimSpace(stderr.String())
		r.log.Error().Err(err).Str("stderr", detail).Msg("Rasterizer subprocess failed")
		return nil, pipeline.NewRasterizationFailed(detail, err)
	}

	// pdftoppm zero-pads the page suffix depending on the document's page
	// count, so the output name cannot be predicted exactly.
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(matches) == 0 {
		return nil, pipeline.NewRasterizationFailed("tool produced no output", err)
	}
	out := matches[0]

	info, err := os.Stat(out)
	if err != nil {
		return nil, pipeline.NewRasterizationFailed("output missing", err)
	}
	if info.Size() == 0 {
		return nil, pipeline.NewRasterizationFailed("output is empty", nil)
	}

	return &pipeline.RasterizedPage{Path: out, PageIndex: page}, nil
}

func (r *Rasterizer) toolMissing(runErr error) bool {
	if errors.Is(runErr, exec.ErrNotFound) {
		return true
	}
	_, lookErr := exec.LookPath(r.tool)
	return lookErr != nil
}
