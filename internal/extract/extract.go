package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
)

// AllowedExtensions maps a logical file type to its accepted extensions.
// Audio is recognized for upload validation but has no extraction pipeline.
var AllowedExtensions = map[string][]string{
	"image":    {"png", "jpg", "jpeg", "gif", "bmp", "tiff"},
	"document": {"pdf", "docx"},
	"audio":    {"mp3", "wav", "m4a"},
}

const ocrPrompt = "Extract all text from this image exactly as written. Return only the extracted text, with no commentary."

// DetectFileType returns the logical type for a filename, or "" when the
// extension is not supported.
func DetectFileType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return ""
	}
	for fileType, exts := range AllowedExtensions {
		for _, allowed := range exts {
			if ext == allowed {
				return fileType
			}
		}
	}
	return ""
}

// Service extracts text from uploaded files. Images go through the
// vision-capable chat model; documents are parsed locally.
type Service struct {
	apiKey     string
	baseURL    string
	ocrModel   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewService creates an extraction service
func NewService(orCfg *config.OpenRouterConfig, upCfg *config.UploadConfig, logger *logrus.Logger) *Service {
	return &Service{
		apiKey:   orCfg.APIKey,
		baseURL:  orCfg.BaseURL,
		ocrModel: upCfg.OCRModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// FromFile extracts text from a file of a known logical type. The boolean
// mirrors the success flag of document parsing: false means the file could
// not be processed, distinct from an empty-but-valid extraction.
func (s *Service) FromFile(ctx context.Context, path, fileType string) (string, bool) {
	switch fileType {
	case "image":
		text, err := s.FromImage(ctx, path)
		if err != nil {
			s.logger.WithError(err).WithField("path", filepath.Base(path)).Error("Image OCR failed")
			return "", false
		}
		return text, true
	case "document":
		return s.FromDocument(ctx, path)
	default:
		return "", false
	}
}

// FromImage performs OCR by sending the image to the vision-capable chat
// model as a base64 data URL.
func (s *Service) FromImage(ctx context.Context, path string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("api key is required for image OCR")
	}

	imgBytes, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mime := http.DetectContentType(imgBytes)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("unsupported content type %s", mime)
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(imgBytes)

	reqBody := map[string]interface{}{
		"model": s.ocrModel,
		"messages": []interface{}{
			map[string]interface{}{
				"role": "user",
				"content": []interface{}{
					map[string]interface{}{"type": "text", "text": ocrPrompt},
					map[string]interface{}{
						"type":      "image_url",
						"image_url": map[string]interface{}{"url": dataURL},
					},
				},
			},
		},
		"temperature": 0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(s.baseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send OCR request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no OCR output from model %s", s.ocrModel)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// FromDocument extracts text from a PDF or DOCX file
func (s *Service) FromDocument(ctx context.Context, path string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = extractPDF(path)
	case "docx":
		text, err = extractDOCX(path)
	default:
		return "", false
	}

	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"path": filepath.Base(path),
			"type": ext,
		}).Error("Document extraction failed")
		return "", false
	}

	text = strings.TrimSpace(text)
	return text, text != ""
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}
