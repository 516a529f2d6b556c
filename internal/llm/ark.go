package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ArkConfig holds the settings for the Ark chat model.
type ArkConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ArkGenerator runs generations through an eino chain backed by an Ark chat
// model.
type ArkGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

func NewArkGenerator(ctx context.Context, cfg ArkConfig) (*ArkGenerator, error) {
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}

	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}
	return &ArkGenerator{chain: runnable}, nil
}

func (g *ArkGenerator) Generate(ctx context.Context, system string, history []Turn, userMessage string) (string, error) {
	msgs := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case "assistant", "ASSISTANT":
			msgs = append(msgs, schema.AssistantMessage(turn.Text, nil))
		default:
			msgs = append(msgs, schema.UserMessage(turn.Text))
		}
	}

	response, err := g.chain.Invoke(ctx, map[string]any{
		"system":  system,
		"history": msgs,
		"query":   userMessage,
	})
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}
	return response.Content, nil
}
