package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/classifier"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/i18n"
	"github.com/sparktutor-go/internal/middleware"
	"github.com/sparktutor-go/internal/models"
	"github.com/sparktutor-go/internal/services/ai"
	"github.com/sparktutor-go/internal/services/cache"
	"github.com/sparktutor-go/internal/services/storage"
	"github.com/sparktutor-go/pkg/markdown"
)

// Handler answers Telegram messages with the same classify-then-route
// pipeline the HTTP API uses. Each chat maps to one session so the
// dissatisfaction escalation works across consecutive messages.
type Handler struct {
	config      *config.Config
	bot         *tgbotapi.BotAPI
	classifier  *classifier.Classifier
	router      *ai.Router
	storage     *storage.Manager
	cache       cache.Service
	rateLimiter middleware.RateLimiter
	localizer   *i18n.Localizer
	metrics     *middleware.Metrics
	logger      *logrus.Logger
}

// NewHandler creates a new Telegram message handler
func NewHandler(
	cfg *config.Config,
	bot *tgbotapi.BotAPI,
	clf *classifier.Classifier,
	router *ai.Router,
	storageManager *storage.Manager,
	cacheService cache.Service,
	rateLimiter middleware.RateLimiter,
	localizer *i18n.Localizer,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		config:      cfg,
		bot:         bot,
		classifier:  clf,
		router:      router,
		storage:     storageManager,
		cache:       cacheService,
		rateLimiter: rateLimiter,
		localizer:   localizer,
		metrics:     metrics,
		logger:      logger,
	}
}

// HandleUpdate processes a single Telegram update
func (h *Handler) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	// Ignore bot's own messages
	if update.Message.From != nil && update.Message.From.ID == h.bot.Self.ID {
		return nil
	}

	if update.Message.IsCommand() {
		return h.handleCommand(ctx, update.Message)
	}

	if update.Message.Text == "" {
		return nil
	}

	return h.handleQuestion(ctx, update.Message)
}

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	lang := h.userLanguage(message)

	switch message.Command() {
	case "start", "help":
		msg := tgbotapi.NewMessage(message.Chat.ID, h.localizer.Get(lang, i18n.MsgWelcome, nil))
		_, err := h.bot.Send(msg)
		return err
	case "reset":
		if err := h.storage.DeleteSession(ctx, sessionID(message.Chat.ID)); err != nil {
			h.logger.WithError(err).Warn("Failed to reset session")
		}
		h.rateLimiter.Reset(strconv.FormatInt(message.Chat.ID, 10))
		msg := tgbotapi.NewMessage(message.Chat.ID, h.localizer.Get(lang, i18n.MsgWelcome, nil))
		_, err := h.bot.Send(msg)
		return err
	}

	return nil
}

func (h *Handler) handleQuestion(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	lang := h.userLanguage(message)
	question := message.Text

	if !h.rateLimiter.Allow(strconv.FormatInt(chatID, 10)) {
		h.metrics.RecordRateLimitExceeded()
		msg := tgbotapi.NewMessage(chatID, h.localizer.Get(lang, i18n.MsgRateLimitExceeded, nil))
		msg.ReplyToMessageID = message.MessageID
		_, err := h.bot.Send(msg)
		return err
	}

	educational := h.classifier.IsEducational(ctx, question)
	h.metrics.RecordClassifierDecision(educational)
	if !educational {
		msg := tgbotapi.NewMessage(chatID, h.localizer.Get(lang, i18n.MsgNotEducational, nil))
		msg.ReplyToMessageID = message.MessageID
		_, err := h.bot.Send(msg)
		return err
	}

	// Send thinking message
	thinkingMsg := tgbotapi.NewMessage(chatID, h.localizer.Get(lang, i18n.MsgProcessing, nil))
	thinkingMsg.ReplyToMessageID = message.MessageID
	sentMsg, err := h.bot.Send(thinkingMsg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to send thinking message")
		return err
	}

	// Process message in background
	go h.answerQuestion(ctx, chatID, sentMsg.MessageID, question)

	return nil
}

func (h *Handler) answerQuestion(ctx context.Context, chatID int64, thinkingMsgID int, question string) {
	aiCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	session, err := h.storage.GetSession(aiCtx, sessionID(chatID))
	if err != nil {
		h.logger.WithError(err).Warn("Failed to load session, continuing without history")
		session = &models.Session{ID: sessionID(chatID)}
	}

	// Escalated answers depend on the chat's dissatisfaction context, so
	// only un-escalated questions touch the shared answer cache.
	cacheable := !h.router.NeedsPaidModel(question, session.LastAnswer)
	if cacheable {
		if answer, found := h.cache.Get(aiCtx, question, h.router.FreeModel()); found {
			h.metrics.RecordCacheHit()
			h.editResponse(chatID, thinkingMsgID, answer)
			return
		}
		h.metrics.RecordCacheMiss()
	}

	start := time.Now()
	answer, model := h.router.GetResponse(aiCtx, question, session.LastAnswer, h.config.Router.SystemPrompt)
	if model == "" {
		h.metrics.RecordModelRequest("none", "error", time.Since(start))
	} else {
		h.metrics.RecordModelRequest(model, "success", time.Since(start))
	}

	if cacheable && model == h.router.FreeModel() {
		if err := h.cache.Set(aiCtx, question, model, answer); err != nil {
			h.logger.WithError(err).Warn("Failed to cache answer")
		}
	}

	session.LastQuestion = question
	session.LastAnswer = answer
	session.LastModel = model
	session.Requests++
	if err := h.storage.SaveSession(aiCtx, session); err != nil {
		h.logger.WithError(err).Warn("Failed to save session")
	}

	h.logger.WithFields(logrus.Fields{
		"chat_id": chatID,
		"model":   model,
	}).Info("Answered Telegram question")

	h.editResponse(chatID, thinkingMsgID, answer)
}

func (h *Handler) editResponse(chatID int64, messageID int, answer string) {
	htmlResponse := markdown.ToTelegramHTML(answer)

	editMsg := tgbotapi.NewEditMessageText(chatID, messageID, htmlResponse)
	editMsg.ParseMode = "HTML"

	if _, err := h.bot.Send(editMsg); err != nil {
		// If HTML parsing fails, try plain text
		h.logger.WithError(err).Warn("Failed to send HTML response, trying plain text")
		editMsg.ParseMode = ""
		editMsg.Text = answer
		if _, err := h.bot.Send(editMsg); err != nil {
			h.logger.WithError(err).Error("Failed to send response")
		}
	}
}

func (h *Handler) userLanguage(message *tgbotapi.Message) string {
	if message.From != nil && message.From.LanguageCode != "" {
		for _, lang := range h.config.I18n.Languages {
			if lang == message.From.LanguageCode {
				return lang
			}
		}
	}
	return h.config.I18n.DefaultLanguage
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}
