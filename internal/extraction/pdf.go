package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFExtractor extracts plain text from PDF files page by page.
type PDFExtractor struct{}

func (e *PDFExtractor) Priority() int { return 10 }

func (e *PDFExtractor) Supports(mediaType string) bool {
	return mediaType == "application/pdf"
}

func (e *PDFExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single corrupt page should not sink the document.
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}
