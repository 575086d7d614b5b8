package models

import (
	"time"
)

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatTextRequest is the body of POST /api/chat/text
type ChatTextRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Format    string `json:"format,omitempty"` // "markdown" (default) or "html"
}

// ChatResponse is the body returned by the chat and file endpoints
type ChatResponse struct {
	Success       bool   `json:"success"`
	AIResponse    string `json:"ai_response"`
	IsEducational bool   `json:"is_educational"`
	Model         string `json:"model,omitempty"`
	Cached        bool   `json:"cached,omitempty"`
}

// ClassifyRequest is the body of POST /api/classify
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse echoes a truncated sample of the classified text
type ClassifyResponse struct {
	Text          string `json:"text"`
	IsEducational bool   `json:"is_educational"`
}

// ExtractResponse is the body returned by POST /api/extract
type ExtractResponse struct {
	Success       bool   `json:"success"`
	ExtractedText string `json:"extracted_text,omitempty"`
	Error         string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status         string              `json:"status"`
	SupportedFiles map[string][]string `json:"supported_files"`
}

// ErrorResponse is the uniform JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// Session holds per-session conversation state. The previous answer feeds the
// router's dissatisfaction check on the next question.
type Session struct {
	ID           string
	LastQuestion string
	LastAnswer   string
	LastModel    string
	Requests     int
	LastActivity time.Time
}

// CacheEntry represents a cached answer
type CacheEntry struct {
	Question  string
	Answer    string
	Model     string
	CreatedAt time.Time
}
