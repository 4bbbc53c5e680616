package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/pkg/logger"
	"persona-chat/backend/pkg/resilience"
)

// Supported remote providers.
const (
	ProviderHuggingFace = "huggingface"
	ProviderGroq        = "groq"
	ProviderOllama      = "ollama"
)

const (
	defaultHuggingFaceURL = "https://api-inference.huggingface.co"
	defaultGroqURL        = "https://api.groq.com"
)

// ClientConfig configures the remote generation client.
type ClientConfig struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint. Required for ollama.
	BaseURL string
	Timeout time.Duration
}

// Client generates responses through an external inference endpoint.
// All failures surface as ErrGenerationFailed; a circuit breaker guards
// the upstream when it is repeatedly unreachable.
type Client struct {
	config     ClientConfig
	characters CharacterFetcher
	history    HistoryFetcher
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// NewClient creates a remote generation client.
func NewClient(config ClientConfig, characters CharacterFetcher, history HistoryFetcher, log *logger.Logger) (*Client, error) {
	switch config.Provider {
	case ProviderHuggingFace, ProviderGroq:
		if config.APIKey == "" {
			return nil, fmt.Errorf("%s: API key not configured", config.Provider)
		}
	case ProviderOllama:
		if config.BaseURL == "" {
			return nil, fmt.Errorf("ollama: base URL not configured")
		}
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", config.Provider)
	}

	if config.Model == "" {
		config.Model = defaultModel(config.Provider)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Client{
		config:     config,
		characters: characters,
		history:    history,
		httpClient: &http.Client{Timeout: config.Timeout},
		breaker:    resilience.New(resilience.DefaultConfig("ai-"+config.Provider), log),
		log:        log,
	}, nil
}

func defaultModel(provider string) string {
	switch provider {
	case ProviderHuggingFace:
		return "meta-llama/Llama-2-7b-chat-hf"
	case ProviderGroq:
		return "mixtral-8x7b-32768"
	default:
		return "mistral"
	}
}

// Generate implements ResponseGenerator.
func (c *Client) Generate(ctx context.Context, characterID, userID, utterance string) (string, error) {
	character, err := c.characters.GetByID(ctx, characterID)
	if err != nil {
		return "", generationError(err)
	}

	history, err := c.history.Recent(ctx, userID, characterID, historyWindow)
	if err != nil {
		return "", generationError(err)
	}

	var response string
	callErr := c.breaker.Execute(func() error {
		var err error
		switch c.config.Provider {
		case ProviderHuggingFace:
			response, err = c.callHuggingFace(ctx, character, history, utterance)
		case ProviderGroq:
			response, err = c.callGroq(ctx, character, history, utterance)
		case ProviderOllama:
			response, err = c.callOllama(ctx, character, history, utterance)
		}
		return err
	})
	if callErr != nil {
		c.log.LogError(callErr, "remote generation failed",
			"provider", c.config.Provider,
			"character_id", characterID,
		)
		return "", generationError(callErr)
	}

	return strings.TrimSpace(response), nil
}

func (c *Client) callHuggingFace(ctx context.Context, character *models.Character, history []models.Message, utterance string) (string, error) {
	payload := map[string]interface{}{
		"inputs": buildPrompt(character, history, utterance),
		"parameters": map[string]interface{}{
			"max_new_tokens":   500,
			"temperature":      0.7,
			"do_sample":        true,
			"top_p":            0.9,
			"return_full_text": false,
		},
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	url := fmt.Sprintf("%s/models/%s", baseURL, c.config.Model)

	body, err := c.post(ctx, url, payload, c.config.APIKey)
	if err != nil {
		return "", err
	}

	var parsed []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed) == 0 || parsed[0].GeneratedText == "" {
		return "", fmt.Errorf("invalid response from Hugging Face API")
	}
	return parsed[0].GeneratedText, nil
}

func (c *Client) callGroq(ctx context.Context, character *models.Character, history []models.Message, utterance string) (string, error) {
	payload := map[string]interface{}{
		"model":       c.config.Model,
		"messages":    chatTurns(character, history, utterance),
		"max_tokens":  500,
		"temperature": 0.7,
		"top_p":       0.9,
	}

	baseURL := c.config.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqURL
	}

	body, err := c.post(ctx, baseURL+"/openai/v1/chat/completions", payload, c.config.APIKey)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("invalid response from Groq API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) callOllama(ctx context.Context, character *models.Character, history []models.Message, utterance string) (string, error) {
	payload := map[string]interface{}{
		"model":    c.config.Model,
		"messages": chatTurns(character, history, utterance),
		"stream":   false,
		"options": map[string]interface{}{
			"temperature": 0.7,
			"top_p":       0.9,
			"num_predict": 500,
		},
	}

	body, err := c.post(ctx, c.config.BaseURL+"/api/chat", payload, "")
	if err != nil {
		return "", err
	}

	var parsed struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Message.Content == "" {
		return "", fmt.Errorf("invalid response from Ollama API")
	}
	return parsed.Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}, apiKey string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
