package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Model        string
	Messages     []models.Message
	Temperature  float64
	MaxTokens    int
}

// fakeChat returns canned answers (or errors) per model and records calls.
type fakeChat struct {
	answers map[string]string
	errs    map[string]error
	calls   []recordedCall
}

func (f *fakeChat) ChatComplete(ctx context.Context, model string, messages []models.Message, temperature float64, maxTokens int) (string, error) {
	f.calls = append(f.calls, recordedCall{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	if answer, ok := f.answers[model]; ok {
		return answer, nil
	}
	return "", errors.New("unexpected model " + model)
}

func routerConfig() *config.RouterConfig {
	return &config.RouterConfig{
		FreeModel:           "gpt-3.5-turbo",
		PaidModel:           "gpt-4o-mini",
		ReasonModel:         "gpt-4o",
		ComplexityThreshold: 15,
		DissatisfactionTriggers: []string{
			"not satisfied", "explain better", "more detail", "incomplete answer",
		},
		TechnicalTriggers: []string{
			"explain in detail", "step-by-step", "prove that", "compare and contrast",
		},
		Temperature: 0.5,
		MaxTokens:   2000,
	}
}

func newTestRouter(chat ChatClient) *Router {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewWithClient(routerConfig(), chat, logger)
}

func TestNew_MissingCredential(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{Router: *routerConfig()}
	_, err := New(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestNeedsPaidModel(t *testing.T) {
	r := newTestRouter(&fakeChat{})

	tests := []struct {
		name     string
		question string
		previous string
		want     bool
	}{
		{"short simple question", "what is gravity", "", false},
		{"dissatisfaction in previous response", "what is gravity", "I am Not Satisfied with that", true},
		{"exactly at threshold stays free", strings.Repeat("word ", 15), "", false},
		{"above threshold escalates", strings.Repeat("word ", 16), "", true},
		{"technical trigger", "prove that sqrt(2) is irrational", "", true},
		{"technical trigger case-insensitive", "please EXPLAIN IN DETAIL how tides work", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.NeedsPaidModel(tt.question, tt.previous))
		})
	}
}

func TestGetResponse_FreeTier(t *testing.T) {
	chat := &fakeChat{answers: map[string]string{"gpt-3.5-turbo": "free answer"}}
	r := newTestRouter(chat)

	answer, model := r.GetResponse(context.Background(), "what is gravity", "", "be helpful")
	assert.Equal(t, "free answer", answer)
	assert.Equal(t, "gpt-3.5-turbo", model)

	require.Len(t, chat.calls, 1)
	call := chat.calls[0]
	assert.Equal(t, "gpt-3.5-turbo", call.Model)
	assert.InDelta(t, 0.5, call.Temperature, 1e-9)
	assert.Equal(t, 2000, call.MaxTokens)
	require.Len(t, call.Messages, 2)
	assert.Equal(t, models.Message{Role: "system", Content: "be helpful"}, call.Messages[0])
	assert.Equal(t, models.Message{Role: "user", Content: "what is gravity"}, call.Messages[1])
}

func TestGetResponse_NoSystemPrompt(t *testing.T) {
	chat := &fakeChat{answers: map[string]string{"gpt-3.5-turbo": "ok"}}
	r := newTestRouter(chat)

	r.GetResponse(context.Background(), "what is gravity", "", "")
	require.Len(t, chat.calls, 1)
	require.Len(t, chat.calls[0].Messages, 1)
	assert.Equal(t, "user", chat.calls[0].Messages[0].Role)
}

func TestGetResponse_PaidTierForLongQuestion(t *testing.T) {
	chat := &fakeChat{answers: map[string]string{"gpt-4o-mini": "paid answer"}}
	r := newTestRouter(chat)

	long := strings.Repeat("why ", 20)
	answer, model := r.GetResponse(context.Background(), long, "", "")
	assert.Equal(t, "paid answer", answer)
	assert.Equal(t, "gpt-4o-mini", model)
	require.Len(t, chat.calls, 1)
	assert.Equal(t, "gpt-4o-mini", chat.calls[0].Model)
}

func TestGetResponse_DissatisfactionEscalatesShortQuestion(t *testing.T) {
	chat := &fakeChat{answers: map[string]string{"gpt-4o-mini": "better answer"}}
	r := newTestRouter(chat)

	answer, _ := r.GetResponse(context.Background(), "try again", "user was not satisfied", "")
	assert.Equal(t, "better answer", answer)
	require.Len(t, chat.calls, 1)
	assert.Equal(t, "gpt-4o-mini", chat.calls[0].Model)
}

func TestGetResponse_PaidFailureFallsBackToReason(t *testing.T) {
	chat := &fakeChat{
		answers: map[string]string{"gpt-4o": "reasoned answer"},
		errs:    map[string]error{"gpt-4o-mini": errors.New("rate limited")},
	}
	r := newTestRouter(chat)

	long := strings.Repeat("why ", 20)
	answer, model := r.GetResponse(context.Background(), long, "", "sys")
	assert.Equal(t, "reasoned answer", answer)
	assert.Equal(t, "gpt-4o", model)

	require.Len(t, chat.calls, 2)
	assert.Equal(t, "gpt-4o-mini", chat.calls[0].Model)
	assert.Equal(t, "gpt-4o", chat.calls[1].Model)
	// Fallback repeats the same question and system prompt.
	assert.Equal(t, chat.calls[0].Messages, chat.calls[1].Messages)
}

func TestGetResponse_AllTiersFailReturnsApology(t *testing.T) {
	chat := &fakeChat{
		errs: map[string]error{
			"gpt-4o-mini": errors.New("down"),
			"gpt-4o":      errors.New("down too"),
		},
	}
	r := newTestRouter(chat)

	long := strings.Repeat("why ", 20)
	answer, model := r.GetResponse(context.Background(), long, "", "")
	assert.Equal(t, ApologyMessage, answer)
	assert.Empty(t, model)
}

func TestGetResponse_FreeFailureReturnsApology(t *testing.T) {
	chat := &fakeChat{errs: map[string]error{"gpt-3.5-turbo": errors.New("down")}}
	r := newTestRouter(chat)

	answer, model := r.GetResponse(context.Background(), "hi there", "", "")
	assert.Equal(t, ApologyMessage, answer)
	assert.Empty(t, model)
	// No cross-tier fallback on the free path.
	require.Len(t, chat.calls, 1)
}
