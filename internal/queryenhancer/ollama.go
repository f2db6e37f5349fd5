package queryenhancer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaLLM calls a local Ollama-compatible /api/generate endpoint.
type OllamaLLM struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOllamaLLM constructs an OllamaLLM with a default 60s timeout, matching
// this module's LLM call budget.
func NewOllamaLLM(baseURL, model string) *OllamaLLM {
	return &OllamaLLM{BaseURL: baseURL, Model: model, Timeout: 60 * time.Second}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Complete sends one low-temperature generate request and returns the
// trimmed response text.
func (o *OllamaLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		System:  system,
		Stream:  false,
		Options: map[string]any{"temperature": 0.3},
	})
	if err != nil {
		return "", err
	}

	timeout := o.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, o.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("queryenhancer: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("queryenhancer: ollama read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("queryenhancer: ollama status %s: %s", resp.Status, string(raw))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("queryenhancer: ollama parse response: %w", err)
	}
	return strings.TrimSpace(parsed.Response), nil
}
