package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

const anthropicBedrockVersion = "bedrock-2023-05-31"

// BedrockAPI is the subset of the bedrockruntime client used here.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type BedrockOptions struct {
	EmbeddingModel string
	ChatModel      string
	Dimensions     int
	MaxTokens      int
	Temperature    float64
}

// Bedrock embeds with Amazon Titan text embeddings and chats with Anthropic models hosted on
// Amazon Bedrock.
type Bedrock struct {
	client BedrockAPI
	logger *zap.Logger
	opts   BedrockOptions
}

func NewBedrock(client BedrockAPI, opts BedrockOptions, logger *zap.Logger) *Bedrock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bedrock{client: client, opts: opts, logger: logger}
}

// NewBedrockFromConfig loads AWS credentials from the default chain (env, shared config,
// instance or Lambda role) for region.
func NewBedrockFromConfig(ctx context.Context, region string, opts BedrockOptions, logger *zap.Logger) (*Bedrock, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), opts, logger), nil
}

type titanEmbeddingRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize"`
}

type titanEmbeddingResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed calls the Titan model once per text; the model has no batch input.
func (b *Bedrock) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		var resp titanEmbeddingResponse
		err := b.invoke(ctx, b.opts.EmbeddingModel, titanEmbeddingRequest{
			InputText:  text,
			Dimensions: b.opts.Dimensions,
			Normalize:  true,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, ErrEmptyResponse)
		}
		embeddings = append(embeddings, resp.Embedding)
	}
	return embeddings, nil
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	Messages         []anthropicMessage `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
}

type anthropicResponse struct {
	StopReason string             `json:"stop_reason"`
	Content    []anthropicContent `json:"content"`
}

// Invoke sends prompt as a single user message and returns the concatenated text blocks.
func (b *Bedrock) Invoke(ctx context.Context, prompt string) (string, error) {
	var resp anthropicResponse
	err := b.invoke(ctx, b.opts.ChatModel, anthropicRequest{
		AnthropicVersion: anthropicBedrockVersion,
		MaxTokens:        b.opts.MaxTokens,
		Temperature:      b.opts.Temperature,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: prompt}},
		}},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to invoke chat model: %w", err)
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	b.logger.Debug("chat model responded", zap.String("stop_reason", resp.StopReason))
	return sb.String(), nil
}

func (b *Bedrock) invoke(ctx context.Context, modelID string, body, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("bedrock InvokeModel %s: %w", modelID, err)
	}

	if err := json.Unmarshal(out.Body, dst); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
