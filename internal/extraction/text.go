package extraction

import (
	"context"
	"strings"
)

// PlainTextExtractor handles text-ish payloads (plain text, CSV, markdown).
type PlainTextExtractor struct{}

func (e *PlainTextExtractor) Priority() int { return 10 }

func (e *PlainTextExtractor) Supports(mediaType string) bool {
	switch mediaType {
	case "text/plain", "text/csv", "text/markdown", "application/json", "application/xml", "text/xml":
		return true
	}
	return strings.HasPrefix(mediaType, "text/") && mediaType != "text/html"
}

func (e *PlainTextExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
}
