package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// Outcome is the result of one extraction run. Exactly one of Text or
// Err is meaningful; MediaType is always the sniffed type.
type Outcome struct {
	Text      string
	MediaType string
	Err       error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Pipeline ties detection, extractor selection and text cleanup together.
type Pipeline struct {
	registry *Registry
}

func NewPipeline(registry *Registry) *Pipeline {
	return &Pipeline{registry: registry}
}

// Extract sniffs the media type from content and runs the matching
// extractor. The declared Content-Type from the upload is deliberately
// ignored; content sniffing decides.
func (p *Pipeline) Extract(ctx context.Context, data []byte) Outcome {
	start := time.Now()
	mediaType := DetectMediaType(data)

	extractor, err := p.registry.ForMediaType(mediaType)
	if err != nil {
		return Outcome{MediaType: mediaType, Err: err}
	}

	text, err := extractor.Extract(ctx, data, mediaType)
	if err != nil {
		return Outcome{MediaType: mediaType, Err: fmt.Errorf("extract %s: %w", mediaType, err)}
	}

	text = Clean(text)
	if text == "" {
		return Outcome{MediaType: mediaType, Err: ErrEmptyContent}
	}

	logger.Debug("extraction completed",
		"media_type", mediaType,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return Outcome{Text: text, MediaType: mediaType}
}

// DefaultRegistry wires the standard extractor set. The OCR bridge is
// only registered when a service URL is configured.
func DefaultRegistry(ocrBaseURL string, ocrTimeout time.Duration, maxArchiveEntry int64) *Registry {
	registry := NewRegistry(
		&PlainTextExtractor{},
		&PDFExtractor{},
		&DOCXExtractor{},
		&XLSXExtractor{},
		&HTMLExtractor{},
	)
	if ocrBaseURL != "" {
		registry.Add(NewOCRExtractor(ocrBaseURL, ocrTimeout))
	}
	registry.Add(NewZipExtractor(registry, NewExpander(maxArchiveEntry)))
	return registry
}
