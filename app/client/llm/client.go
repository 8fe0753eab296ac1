package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"moodmate/app/config"

	"github.com/sashabaranov/go-openai"
)

const maxCallDuration = 30 * time.Second

// Client is a thin wrapper over an OpenAI-compatible chat completion
// endpoint. Every call carries a bounded timeout so a slow collaborator
// can never stall a chat turn.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg config.ModelConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: maxCallDuration,
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, maxCallDuration)
	defer cancel()

	aiResponse, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxCompletionTokens: 300,
			Temperature:         0.2,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return TrimFences(aiResponse.Choices[0].Message.Content), nil
}

// TrimFences strips the markdown code fences some models wrap their
// output with.
func TrimFences(text string) string {
	text = strings.Trim(text, "`")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "json")

	return strings.TrimSpace(text)
}
