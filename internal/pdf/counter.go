package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/docuflow/extract-service/internal/pipeline"
)

// MetadataReader resolves PDF page counts from document metadata. This is
// a cheap parse, independent of rasterization.
type MetadataReader struct{}

// PageCount returns the document's total page count. An unparsable PDF is
// a client-input error; it never reaches the rasterizer.
func (MetadataReader) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, pipeline.NewMalformedDocument(err)
	}
	if count < 1 {
		return 0, pipeline.NewMalformedDocument(fmt.Errorf("document reports %d pages", count))
	}
	return count, nil
}
