package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIOptions struct {
	APIURL         string // empty for api.openai.com
	APIKey         string
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	MaxTokens      int
	Temperature    float64
}

// OpenAI talks to the OpenAI API or any server compatible with it.
type OpenAI struct {
	client openai.Client
	opts   OpenAIOptions
}

func NewOpenAI(opts OpenAIOptions, reqOpts ...option.RequestOption) *OpenAI {
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.APIURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.APIURL))
	}
	clientOpts = append(clientOpts, reqOpts...)

	return &OpenAI{
		client: openai.NewClient(clientOpts...),
		opts:   opts,
	}
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.opts.EmbeddingModel),
	}
	if o.opts.Dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.opts.Dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("mismatch between inputs and embeddings length: %d vs %d", len(texts), len(resp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		embeddings[d.Index] = vec
	}
	return embeddings, nil
}

func (o *OpenAI) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.opts.ChatModel),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		MaxTokens:   openai.Int(int64(o.opts.MaxTokens)),
		Temperature: openai.Float(o.opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke chat model: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
