package server

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/extract"
	"github.com/sparktutor-go/internal/i18n"
	"github.com/sparktutor-go/internal/models"
	"github.com/sparktutor-go/pkg/markdown"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "SparkTutor Chatbot API is online and healthy.",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:         "healthy",
		SupportedFiles: extract.AllowedExtensions,
	})
}

// handleChatText handles text-based chat messages
func (s *Server) handleChatText(w http.ResponseWriter, r *http.Request) {
	lang := s.requestLanguage(r)

	var req models.ChatTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, s.localizer.Get(lang, i18n.MsgMessageRequired, nil))
		return
	}
	defer r.Body.Close()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.writeError(w, http.StatusBadRequest, s.localizer.Get(lang, i18n.MsgMessageRequired, nil))
		return
	}

	if !s.allowRequest(w, r, req.SessionID, lang) {
		return
	}

	educational := s.classifier.IsEducational(r.Context(), message)
	s.metrics.RecordClassifierDecision(educational)
	if !educational {
		s.writeJSON(w, http.StatusOK, models.ChatResponse{
			Success:       true,
			AIResponse:    s.localizer.Get(lang, i18n.MsgNotEducational, nil),
			IsEducational: false,
		})
		return
	}

	// The previous answer drives the dissatisfaction escalation check.
	previousResponse := ""
	var session *models.Session
	if req.SessionID != "" {
		var err error
		session, err = s.storage.GetSession(r.Context(), req.SessionID)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load session, continuing without history")
		} else {
			previousResponse = session.LastAnswer
		}
	}

	// Only un-escalated questions hit the answer cache: escalated answers
	// depend on the dissatisfaction context of one session.
	cacheable := !s.router.NeedsPaidModel(message, previousResponse)
	if cacheable {
		if answer, found := s.cache.Get(r.Context(), message, s.router.FreeModel()); found {
			s.metrics.RecordCacheHit()
			s.writeJSON(w, http.StatusOK, models.ChatResponse{
				Success:       true,
				AIResponse:    s.formatAnswer(answer, req.Format),
				IsEducational: true,
				Model:         s.router.FreeModel(),
				Cached:        true,
			})
			return
		}
		s.metrics.RecordCacheMiss()
	}

	start := time.Now()
	answer, model := s.router.GetResponse(r.Context(), message, previousResponse, s.cfg.Router.SystemPrompt)
	s.recordModelOutcome(model, time.Since(start))

	if cacheable && model == s.router.FreeModel() {
		if err := s.cache.Set(r.Context(), message, model, answer); err != nil {
			s.logger.WithError(err).Warn("Failed to cache answer")
		}
	}

	if session != nil {
		session.LastQuestion = message
		session.LastAnswer = answer
		session.LastModel = model
		session.Requests++
		if err := s.storage.SaveSession(r.Context(), session); err != nil {
			s.logger.WithError(err).Warn("Failed to save session")
		}
	}

	s.writeJSON(w, http.StatusOK, models.ChatResponse{
		Success:       true,
		AIResponse:    s.formatAnswer(answer, req.Format),
		IsEducational: true,
		Model:         model,
	})
}

// handleChatFile handles file uploads and subsequent chat
func (s *Server) handleChatFile(w http.ResponseWriter, r *http.Request) {
	lang := s.requestLanguage(r)

	if !s.allowRequest(w, r, "", lang) {
		return
	}

	extractedText, fileType, ok := s.extractUpload(w, r, lang)
	if !ok {
		return
	}

	educational := s.classifier.IsEducational(r.Context(), extractedText)
	s.metrics.RecordClassifierDecision(educational)
	if !educational {
		s.writeJSON(w, http.StatusOK, models.ChatResponse{
			Success:       true,
			AIResponse:    s.localizer.Get(lang, i18n.MsgFileNotEducational, nil),
			IsEducational: false,
		})
		return
	}

	start := time.Now()
	answer, model := s.router.GetResponse(r.Context(), extractedText, "", s.cfg.Router.SystemPrompt)
	s.recordModelOutcome(model, time.Since(start))

	s.logger.WithFields(logrus.Fields{
		"file_type": fileType,
		"model":     model,
	}).Info("Answered file upload")

	s.writeJSON(w, http.StatusOK, models.ChatResponse{
		Success:       true,
		AIResponse:    answer,
		IsEducational: true,
		Model:         model,
	})
}

// handleClassify classifies a given text as educational or not
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req models.ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	defer r.Body.Close()

	educational := s.classifier.IsEducational(r.Context(), req.Text)
	s.metrics.RecordClassifierDecision(educational)

	// Truncate on runes so a multi-byte character is never split.
	echo := req.Text
	if runes := []rune(echo); len(runes) > 200 {
		echo = string(runes[:200]) + "..."
	}

	s.writeJSON(w, http.StatusOK, models.ClassifyResponse{
		Text:          echo,
		IsEducational: educational,
	})
}

// handleExtract extracts text from a file without generating an AI response
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	lang := s.requestLanguage(r)

	extractedText, _, ok := s.extractUpload(w, r, lang)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, models.ExtractResponse{
		Success:       true,
		ExtractedText: extractedText,
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	lang := s.requestLanguage(r)
	s.writeError(w, http.StatusNotFound, s.localizer.Get(lang, i18n.MsgNotFound, nil))
}

// extractUpload validates the multipart upload, saves it to a temp file,
// extracts its text and cleans up. On failure it writes the error response
// and returns ok=false.
func (s *Server) extractUpload(w http.ResponseWriter, r *http.Request, lang string) (text, fileType string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxSizeBytes)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxSizeBytes); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, s.localizer.Get(lang, i18n.MsgFileTooLarge, nil))
		return "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, s.localizer.Get(lang, i18n.MsgNoFile, nil))
		return "", "", false
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	fileType = extract.DetectFileType(filename)
	if fileType == "" {
		s.writeError(w, http.StatusBadRequest, s.localizer.Get(lang, i18n.MsgUnsupportedFile, nil))
		return "", "", false
	}

	if err := os.MkdirAll(s.cfg.Upload.Dir, 0755); err != nil {
		s.logger.WithError(err).Error("Failed to create upload directory")
		s.writeError(w, http.StatusInternalServerError, s.localizer.Get(lang, i18n.MsgInternalError, nil))
		return "", "", false
	}

	tempFile, err := os.CreateTemp(s.cfg.Upload.Dir, "upload-*"+filepath.Ext(filename))
	if err != nil {
		s.logger.WithError(err).Error("Failed to create temp file")
		s.writeError(w, http.StatusInternalServerError, s.localizer.Get(lang, i18n.MsgInternalError, nil))
		return "", "", false
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.ReadFrom(file); err != nil {
		tempFile.Close()
		s.logger.WithError(err).Error("Failed to save upload")
		s.writeError(w, http.StatusInternalServerError, s.localizer.Get(lang, i18n.MsgInternalError, nil))
		return "", "", false
	}
	tempFile.Close()

	extracted, success := s.extractor.FromFile(r.Context(), tempPath, fileType)
	if !success || extracted == "" {
		s.metrics.RecordExtraction(fileType, "error")
		s.writeError(w, http.StatusBadRequest,
			s.localizer.Get(lang, i18n.MsgExtractionFailed, map[string]interface{}{"FileType": fileType}))
		return "", "", false
	}
	s.metrics.RecordExtraction(fileType, "success")

	return extracted, fileType, true
}

// allowRequest applies the per-client rate limit. The session ID keys the
// limiter when present so clients behind one NAT are not lumped together.
func (s *Server) allowRequest(w http.ResponseWriter, r *http.Request, sessionID, lang string) bool {
	clientID := sessionID
	if clientID == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		clientID = host
	}

	if !s.limiter.Allow(clientID) {
		s.metrics.RecordRateLimitExceeded()
		s.writeError(w, http.StatusTooManyRequests, s.localizer.Get(lang, i18n.MsgRateLimitExceeded, nil))
		return false
	}
	return true
}

func (s *Server) formatAnswer(answer, format string) string {
	if format == "html" {
		return markdown.ToHTML(answer)
	}
	return answer
}

func (s *Server) recordModelOutcome(model string, duration time.Duration) {
	if model == "" {
		s.metrics.RecordModelRequest("none", "error", duration)
		return
	}
	s.metrics.RecordModelRequest(model, "success", duration)
	if model == s.cfg.Router.ReasonModel {
		s.metrics.RecordModelFallback()
	}
}

// requestLanguage picks the response language from Accept-Language.
func (s *Server) requestLanguage(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return s.cfg.I18n.DefaultLanguage
	}

	primary := strings.TrimSpace(strings.Split(header, ",")[0])
	if i := strings.IndexAny(primary, "-;_"); i > 0 {
		primary = primary[:i]
	}
	return strings.ToLower(primary)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.ErrorResponse{Error: message})
}
