package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	messages []models.Message
	err      error
}

func (f *fakeHistory) Recent(ctx context.Context, userID, characterID string, limit int) ([]models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func newRemoteClient(t *testing.T, config ClientConfig, character *models.Character) *Client {
	t.Helper()
	client, err := NewClient(config, newFakeFetcher(character), &fakeHistory{}, testLogger())
	require.NoError(t, err)
	return client
}

func testLogger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = "error"
	return logger.New(cfg)
}

func TestNewClientValidation(t *testing.T) {
	fetcher := newFakeFetcher()
	history := &fakeHistory{}
	log := testLogger()

	_, err := NewClient(ClientConfig{Provider: ProviderGroq}, fetcher, history, log)
	assert.Error(t, err, "groq requires an API key")

	_, err = NewClient(ClientConfig{Provider: ProviderHuggingFace}, fetcher, history, log)
	assert.Error(t, err, "huggingface requires an API key")

	_, err = NewClient(ClientConfig{Provider: ProviderOllama}, fetcher, history, log)
	assert.Error(t, err, "ollama requires a base URL")

	_, err = NewClient(ClientConfig{Provider: "openai", APIKey: "k"}, fetcher, history, log)
	assert.Error(t, err, "unknown providers are rejected")
}

func TestNewClientDefaults(t *testing.T) {
	client := newRemoteClient(t, ClientConfig{Provider: ProviderGroq, APIKey: "k"}, testCharacter())
	assert.Equal(t, "mixtral-8x7b-32768", client.config.Model)

	client = newRemoteClient(t, ClientConfig{Provider: ProviderOllama, BaseURL: "http://localhost:11434"}, testCharacter())
	assert.Equal(t, "mistral", client.config.Model)
}

func TestClientGroqGenerate(t *testing.T) {
	var gotPath, gotAuth string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "  Hello from the stars.  "}},
			},
		})
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderGroq,
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, testCharacter())

	response, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello from the stars.", response)
	assert.Equal(t, "/openai/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "mixtral-8x7b-32768", gotPayload["model"])
	assert.NotEmpty(t, gotPayload["messages"])
}

func TestClientOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"content": "Local model reply."},
		})
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderOllama,
		BaseURL:  server.URL,
	}, testCharacter())

	response, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Local model reply.", response)
}

func TestClientHuggingFaceGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/meta-llama/Llama-2-7b-chat-hf", r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]string{
			{"generated_text": "Inference reply."},
		})
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderHuggingFace,
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, testCharacter())

	response, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Inference reply.", response)
}

func TestClientUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderGroq,
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, testCharacter())

	_, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestClientMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderGroq,
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, testCharacter())

	_, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestClientCircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newRemoteClient(t, ClientConfig{
		Provider: ProviderGroq,
		APIKey:   "test-key",
		BaseURL:  server.URL,
	}, testCharacter())

	// Five consecutive failures trip the breaker; the sixth call must not
	// reach the upstream at all.
	for i := 0; i < 6; i++ {
		_, err := client.Generate(context.Background(), "char-1", "user-a", "hello")
		require.Error(t, err)
	}
	assert.Equal(t, 5, hits)
}
