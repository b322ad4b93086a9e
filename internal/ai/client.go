package ai

import (
	"net/http"
	"time"

	"github.com/learncircle/backend/internal/config"
)

// Client talks to an OpenAI-compatible API for audio transcription and chat
// completion. Base URL is configurable so tests can point it at a fake.
type Client struct {
	apiKey          string
	baseURL         string
	chatModel       string
	transcribeModel string
	language        string
	client          *http.Client
}

func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
		language:        cfg.Language,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
