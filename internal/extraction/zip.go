package extraction

import (
	"context"
	"strings"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

const memberDelimiter = "--------------------------------------------------------------------------------"

// ZipExtractor flattens an archive into one text blob. Each member is
// extracted with the regular per-format extractors and rendered under a
// "FILE: <path>" header so the model can tell documents apart. Members
// no extractor can handle are skipped, not failed; nested archives are
// treated as unsupported to keep the expansion single-level.
type ZipExtractor struct {
	registry *Registry
	expander *Expander
}

func NewZipExtractor(registry *Registry, expander *Expander) *ZipExtractor {
	return &ZipExtractor{registry: registry, expander: expander}
}

func (e *ZipExtractor) Priority() int { return 20 }

func (e *ZipExtractor) Supports(mediaType string) bool {
	return mediaType == "application/zip" || mediaType == "application/x-zip-compressed"
}

func (e *ZipExtractor) Extract(ctx context.Context, data []byte, _ string) (string, error) {
	var buf strings.Builder

	stats, err := e.expander.Walk(data, func(m Member) error {
		mediaType := DetectMediaType(m.Data)
		inner, err := e.registry.selectExcluding(mediaType, e)
		if err != nil {
			logger.Warn("no extractor for archive member", "member", m.Path, "media_type", mediaType)
			return nil
		}
		text, err := inner.Extract(ctx, m.Data, mediaType)
		if err != nil {
			logger.Warn("archive member extraction failed", "member", m.Path, "error", err)
			return nil
		}
		text = Clean(text)
		if text == "" {
			return nil
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString("FILE: ")
		buf.WriteString(m.Path)
		buf.WriteString("\n")
		buf.WriteString(memberDelimiter)
		buf.WriteString("\n")
		buf.WriteString(text)
		return nil
	})
	if err != nil {
		return "", err
	}

	logger.Debug("archive flattened", "processed", stats.Processed, "skipped", stats.Skipped)
	return buf.String(), nil
}
