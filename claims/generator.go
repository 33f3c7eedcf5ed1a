package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Generator is an opaque text-completion capability.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"

	openRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultModel      = "gpt-4o-mini"
)

type OpenAIConfig struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float32
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIGenerator completes prompts with an OpenAI compatible chat model.
// OpenRouter is reached through the same client with its own base URL.
type OpenAIGenerator struct {
	chat model.BaseChatModel
}

func NewOpenAIGenerator(ctx context.Context, cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key not provided", providerName(cfg.Provider))
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	chatConfig := &einoopenai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   modelName,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	if chatConfig.BaseURL == "" && strings.EqualFold(cfg.Provider, ProviderOpenRouter) {
		chatConfig.BaseURL = openRouterBaseURL
	}
	if cfg.Temperature != nil {
		chatConfig.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		chatConfig.MaxTokens = &cfg.MaxTokens
	}

	chat, err := einoopenai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return &OpenAIGenerator{chat: chat}, nil
}

// NewChatGenerator wraps an existing eino chat model.
func NewChatGenerator(chat model.BaseChatModel) *OpenAIGenerator {
	return &OpenAIGenerator{chat: chat}
}

func (g *OpenAIGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(prompt),
	}

	resp, err := g.chat.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Content), nil
}

func providerName(p string) string {
	if strings.EqualFold(p, ProviderOpenRouter) {
		return "OpenRouter"
	}
	return "OpenAI"
}
