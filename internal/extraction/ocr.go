package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// OCRExtractor sends images to an external OCR service over HTTP. It sits
// in front of the document extractors so scanned images never reach them.
type OCRExtractor struct {
	baseURL    string
	httpClient *http.Client
}

type ocrResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func NewOCRExtractor(baseURL string, timeout time.Duration) *OCRExtractor {
	return &OCRExtractor{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (e *OCRExtractor) Priority() int { return 5 }

func (e *OCRExtractor) Supports(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

func (e *OCRExtractor) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "upload")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/ocr/extract", &buf)
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ocr service returned status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if !ocrResp.Success {
		return "", fmt.Errorf("ocr failed: %s", ocrResp.Error)
	}
	return ocrResp.Text, nil
}
