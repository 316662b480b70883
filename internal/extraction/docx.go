package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor extracts paragraph text from Word documents.
type DOCXExtractor struct{}

func (e *DOCXExtractor) Priority() int { return 10 }

func (e *DOCXExtractor) Supports(mediaType string) bool {
	return mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		mediaType == "application/msword"
}

func (e *DOCXExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var buf strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
