package ai

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/models"
)

// ApologyMessage is returned when every attempted model call fails. Callers
// depend on its exact value; it is deliberately not localized.
const ApologyMessage = "I apologize, but I encountered an error while generating a response."

// Tier identifies one of the ranked model backends.
type Tier string

const (
	TierFree   Tier = "free"
	TierPaid   Tier = "paid"
	TierReason Tier = "reason"
)

// Router picks a model tier for each question and performs the call with a
// single paid-to-reason fallback. It never returns an error to its caller:
// the worst case is the fixed apology string.
type Router struct {
	cfg    *config.RouterConfig
	client ChatClient
	logger *logrus.Logger

	dissatisfactionTriggers []string
	technicalTriggers       []string
}

// New builds a router with its own OpenRouter-backed chat client. Fails when
// the API credential is absent.
func New(cfg *config.Config, logger *logrus.Logger) (*Router, error) {
	client, err := NewOpenRouterClient(&cfg.OpenRouter, logger)
	if err != nil {
		return nil, err
	}
	return NewWithClient(&cfg.Router, client, logger), nil
}

// NewWithClient builds a router over an injected chat client.
func NewWithClient(cfg *config.RouterConfig, client ChatClient, logger *logrus.Logger) *Router {
	return &Router{
		cfg:                     cfg,
		client:                  client,
		logger:                  logger,
		dissatisfactionTriggers: lowercaseAll(cfg.DissatisfactionTriggers),
		technicalTriggers:       lowercaseAll(cfg.TechnicalTriggers),
	}
}

// NeedsPaidModel decides whether the question escalates past the free tier.
// Order matters: dissatisfaction with the previous answer wins, then raw
// question length, then technical phrasing.
func (r *Router) NeedsPaidModel(question, previousResponse string) bool {
	previousLower := strings.ToLower(previousResponse)
	for _, trigger := range r.dissatisfactionTriggers {
		if strings.Contains(previousLower, trigger) {
			return true
		}
	}

	if len(strings.Fields(question)) > r.cfg.ComplexityThreshold {
		return true
	}

	questionLower := strings.ToLower(question)
	for _, trigger := range r.technicalTriggers {
		if strings.Contains(questionLower, trigger) {
			return true
		}
	}

	return false
}

// GetResponse routes the question to a model tier and returns the answer
// together with the model that produced it. All call failures are logged and
// absorbed; after the paid tier fails the reason tier is tried once, and if
// every attempt fails the fixed apology string is returned.
func (r *Router) GetResponse(ctx context.Context, question, previousResponse, systemPrompt string) (string, string) {
	if r.NeedsPaidModel(question, previousResponse) {
		answer, err := r.queryModel(ctx, TierPaid, r.cfg.PaidModel, question, systemPrompt)
		if err == nil {
			return answer, r.cfg.PaidModel
		}

		answer, err = r.queryModel(ctx, TierReason, r.cfg.ReasonModel, question, systemPrompt)
		if err == nil {
			return answer, r.cfg.ReasonModel
		}

		return ApologyMessage, ""
	}

	answer, err := r.queryModel(ctx, TierFree, r.cfg.FreeModel, question, systemPrompt)
	if err == nil {
		return answer, r.cfg.FreeModel
	}

	return ApologyMessage, ""
}

// queryModel performs one chat call. The question itself is not logged.
func (r *Router) queryModel(ctx context.Context, tier Tier, model, question, systemPrompt string) (string, error) {
	messages := make([]models.Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, models.Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, models.Message{Role: "user", Content: question})

	answer, err := r.client.ChatComplete(ctx, model, messages, r.cfg.Temperature, r.cfg.MaxTokens)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"tier":  string(tier),
			"model": model,
		}).Error("Chat completion failed")
		return "", err
	}

	return answer, nil
}

// FreeModel exposes the free-tier model ID for callers that report or cache
// by model.
func (r *Router) FreeModel() string { return r.cfg.FreeModel }

func lowercaseAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
