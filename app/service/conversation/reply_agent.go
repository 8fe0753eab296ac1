package conversation

import (
	"context"
	"fmt"
	"time"

	"moodmate/app/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const maxReplyDuration = 30 * time.Second

const basePrompt = `You are Lumi, a compassionate mental health support assistant. You help users who are feeling stressed, anxious, or overwhelmed.
You are not a medical professional and never offer clinical advice or diagnosis.
Always encourage users to reach out to licensed therapists or mental health hotlines if they are in crisis.
Keep your responses warm, empathetic, and supportive. Keep the responses concise and to the point.`

// ReplyAgent produces the free-form dialogue fallback when no goal
// machinery claims a turn.
type ReplyAgent struct {
	model llms.Model
}

func NewReplyAgent(cfg config.ModelConfig) (*ReplyAgent, error) {
	model, err := openai.New(
		openai.WithToken(cfg.Token),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create reply model: %w", err)
	}

	return &ReplyAgent{model: model}, nil
}

func (a *ReplyAgent) Reply(ctx context.Context, history, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, maxReplyDuration)
	defer cancel()

	prompt := fmt.Sprintf("%s\n\nRecent conversation:\n%s\n\nUser: %s", basePrompt, history, text)

	reply, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt,
		llms.WithMaxTokens(300),
		llms.WithTemperature(0.7),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}

	return reply, nil
}
