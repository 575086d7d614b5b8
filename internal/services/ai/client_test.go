package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sparktutor-go/internal/config"
	"github.com/sparktutor-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *OpenRouterClient {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client, err := NewOpenRouterClient(&config.OpenRouterConfig{
		APIKey:  "sk-test",
		BaseURL: baseURL,
	}, logger)
	require.NoError(t, err)
	return client
}

func TestNewOpenRouterClient_RequiresAPIKey(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	_, err := NewOpenRouterClient(&config.OpenRouterConfig{}, logger)
	assert.Error(t, err)
}

func TestChatComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model       string              `json:"model"`
			Messages    []map[string]string `json:"messages"`
			Temperature float64             `json:"temperature"`
			MaxTokens   int                 `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		assert.InDelta(t, 0.5, body.Temperature, 1e-9)
		assert.Equal(t, 2000, body.MaxTokens)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0]["role"])

		w.Write([]byte(`{"choices":[{"message":{"content":"photosynthesis is..."}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	answer, err := client.ChatComplete(context.Background(), "gpt-3.5-turbo", []models.Message{
		{Role: "system", Content: "tutor"},
		{Role: "user", Content: "explain photosynthesis"},
	}, 0.5, 2000)
	require.NoError(t, err)
	assert.Equal(t, "photosynthesis is...", answer)
}

func TestChatComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.ChatComplete(context.Background(), "gpt-3.5-turbo", []models.Message{
		{Role: "user", Content: "hi"},
	}, 0.5, 2000)
	assert.Error(t, err)
}

func TestChatComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.ChatComplete(context.Background(), "gpt-3.5-turbo", []models.Message{
		{Role: "user", Content: "hi"},
	}, 0.5, 2000)
	assert.Error(t, err)
}

func TestChatComplete_HonorsRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client, err := NewOpenRouterClient(&config.OpenRouterConfig{
		APIKey:         "sk-test",
		BaseURL:        srv.URL,
		RequestTimeout: 20 * time.Millisecond,
	}, logger)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.ChatComplete(context.Background(), "gpt-3.5-turbo", []models.Message{
		{Role: "user", Content: "hi"},
	}, 0.5, 2000)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "call must fail at the configured timeout, not the outer cap")
}

func TestChatComplete_APIErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"message":"model overloaded"},"choices":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.ChatComplete(context.Background(), "gpt-3.5-turbo", []models.Message{
		{Role: "user", Content: "hi"},
	}, 0.5, 2000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}
