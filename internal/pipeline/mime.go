package pipeline

import "bytes"

// DetectMediaType detects the actual media type from file content magic
// bytes. Returns "" when the content matches none of the formats this
// service processes. Declared types that contradict the detected content
// are rejected before any pipeline work.
func DetectMediaType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PDF: %PDF-
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return MediaTypePDF
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return MediaTypePNG
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return MediaTypeJPEG
	}

	return ""
}
