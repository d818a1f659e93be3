package llm

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/edgeflare/ragapi/pkg/httputil"
	"go.uber.org/zap"
)

const (
	defaultOllamaURL   = "http://127.0.0.1:11434"
	ollamaEmbedPath    = "/v1/embeddings"
	ollamaGeneratePath = "/api/generate"
)

type OllamaOptions struct {
	APIURL         string
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	MaxTokens      int
	Temperature    float64
	// GenerateTimeout bounds a single /api/generate attempt, defaults to one minute.
	GenerateTimeout time.Duration
}

// Ollama uses the OpenAI-compatible embeddings endpoint and the native generate endpoint of
// an Ollama server. Requests are retried with backoff by httputil.Request.
type Ollama struct {
	logger *zap.Logger
	opts   OllamaOptions
}

func NewOllama(opts OllamaOptions, logger *zap.Logger) *Ollama {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.APIURL = strings.TrimSuffix(cmp.Or(opts.APIURL, defaultOllamaURL), "/")
	opts.GenerateTimeout = cmp.Or(opts.GenerateTimeout, time.Minute)
	return &Ollama{opts: opts, logger: logger}
}

// EmbeddingRequest is the request body of the embeddings endpoint
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the response body of the embeddings endpoint
// https://platform.openai.com/docs/api-reference/embeddings/create
// https://github.com/ollama/ollama/blob/main/docs/api.md#embeddings
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (o *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	reqConfig := o.requestConfig(o.opts.APIURL + ollamaEmbedPath)
	response, err := httputil.Request(ctx, reqConfig, EmbeddingRequest{
		Model: o.opts.EmbeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}

	var embeddingResponse EmbeddingResponse
	if err := json.Unmarshal(response.Body, &embeddingResponse); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(embeddingResponse.Data) != len(texts) {
		return nil, fmt.Errorf("mismatch between inputs and embeddings length: %d vs %d", len(texts), len(embeddingResponse.Data))
	}

	embeddings := make([][]float32, len(texts))
	for i, d := range embeddingResponse.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// GenerateRequest is the body for /api/generate requests. Model and Prompt fields are required.
type GenerateRequest struct {
	Options map[string]any `json:"options,omitempty"`
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
	Done     bool   `json:"done"`
}

func (o *Ollama) Invoke(ctx context.Context, prompt string) (string, error) {
	reqConfig := o.requestConfig(o.opts.APIURL + ollamaGeneratePath)
	reqConfig.Timeout = o.opts.GenerateTimeout

	response, err := httputil.Request(ctx, reqConfig, GenerateRequest{
		Model:  o.opts.ChatModel,
		Prompt: prompt,
		Stream: false,
		Options: map[string]any{
			"temperature": o.opts.Temperature,
			"num_predict": o.opts.MaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}

	var generated GenerateResponse
	if err := json.Unmarshal(response.Body, &generated); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if generated.Response == "" {
		return "", ErrEmptyResponse
	}
	return generated.Response, nil
}

func (o *Ollama) requestConfig(url string) httputil.RequestConfig {
	reqConfig := httputil.DefaultRequestConfig(http.MethodPost, url)
	reqConfig.Logger = o.logger
	if o.opts.APIKey != "" {
		reqConfig.Headers = map[string][]string{
			"Authorization": {"Bearer " + o.opts.APIKey},
		}
	}
	return reqConfig
}
