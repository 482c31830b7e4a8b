package skills

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"skillsync/internal/config"
)

// NewChatModel builds the chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	se := cfg.SkillExtraction
	provCfg, ok := cfg.Providers[se.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", se.Provider)
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", se.Provider)
	}
	modelName := se.Model
	if modelName == "" {
		modelName = provCfg.Model
	}

	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch se.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   modelName,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if cerr != nil {
			return nil, fmt.Errorf("new gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: se.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", se.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", se.Provider, err)
	}
	return chatModel, nil
}
