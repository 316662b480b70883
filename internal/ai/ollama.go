package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// ErrModelUnavailable is returned while the circuit breaker is open.
var ErrModelUnavailable = errors.New("model backend unavailable")

// OllamaClient is the single synchronous external dependency inside a
// worker: one HTTP generate call with a bounded timeout, behind a
// circuit breaker and a local rate limiter.
type OllamaClient struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func NewOllamaClient(baseURL string, timeout time.Duration) *OllamaClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OllamaAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &OllamaClient{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     breaker,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

// Generate runs one completion and returns the model's response text.
func (c *OllamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, model, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		return "", err
	}

	return result.(string), nil
}

func (c *OllamaClient) generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	if out.Response == "" {
		return "", errors.New("ollama error: response is empty")
	}

	return out.Response, nil
}

// Warmup issues a trivial generate so the model is resident before the
// first real job. Failure is logged, never fatal.
func (c *OllamaClient) Warmup(ctx context.Context, model string) {
	start := time.Now()
	if _, err := c.Generate(ctx, model, "Hello"); err != nil {
		logger.Warn("Ollama warmup failed", "model", model, "error", err)
		return
	}
	logger.Info("Ollama warmup complete", "model", model, "duration_ms", time.Since(start).Milliseconds())
}
