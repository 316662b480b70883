package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXExtractor renders spreadsheets as tab-separated text, one sheet
// after another with the sheet name as a header line.
type XLSXExtractor struct{}

func (e *XLSXExtractor) Priority() int { return 10 }

func (e *XLSXExtractor) Supports(mediaType string) bool {
	return mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" ||
		mediaType == "application/vnd.ms-excel"
}

func (e *XLSXExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(sheet)
		buf.WriteString("\n")
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}
