package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
)

// ZeroShotResult holds candidate labels ordered by descending score with a
// parallel score slice.
type ZeroShotResult struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ZeroShotClassifier scores a text against arbitrary candidate labels.
type ZeroShotClassifier interface {
	Classify(ctx context.Context, text string, candidateLabels []string) (*ZeroShotResult, error)
}

// HuggingFaceClassifier calls the Hugging Face Inference API for zero-shot
// classification.
type HuggingFaceClassifier struct {
	cfg        *config.ZeroShotConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHuggingFaceClassifier creates a zero-shot classifier backed by the
// Hugging Face Inference API
func NewHuggingFaceClassifier(cfg *config.ZeroShotConfig, logger *logrus.Logger) *HuggingFaceClassifier {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &HuggingFaceClassifier{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Classify sends the text and candidate labels to the inference API
func (h *HuggingFaceClassifier) Classify(ctx context.Context, text string, candidateLabels []string) (*ZeroShotResult, error) {
	reqBody := map[string]interface{}{
		"inputs": text,
		"parameters": map[string]interface{}{
			"candidate_labels": candidateLabels,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", strings.TrimSuffix(h.cfg.BaseURL, "/"), h.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if h.cfg.APIToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", h.cfg.APIToken))
	}

	h.logger.WithFields(logrus.Fields{
		"model":  h.cfg.Model,
		"labels": len(candidateLabels),
	}).Debug("Sending zero-shot classification request")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zero-shot request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result ZeroShotResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(result.Labels) == 0 || len(result.Labels) != len(result.Scores) {
		return nil, fmt.Errorf("malformed zero-shot response: %d labels, %d scores", len(result.Labels), len(result.Scores))
	}

	return &result, nil
}
