package intent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrNoGoalDetected is the degraded outcome of every classification
// failure mode: the router treats it as "this turn carries no goal
// intent", never as a user-visible error.
var ErrNoGoalDetected = errors.New("no goal detected")

// GoalTypes is the fixed, extensible set of tracked goal types.
var GoalTypes = []string{
	"reduce_stress",
	"improve_sleep",
	"boost_social",
	"improve_focus",
}

// Classifier maps a free-text utterance to one of the known goal
// types. Implementations must return ErrNoGoalDetected instead of
// propagating transport or parse failures.
type Classifier interface {
	GoalType(ctx context.Context, text string) (string, error)
}

// Lexicon is the phrase-table variant: cheap, deterministic, and the
// fallback when no model is configured.
type Lexicon struct{}

var _ Classifier = Lexicon{}

var lexiconCues = []struct {
	goalType string
	cues     []string
}{
	{"improve_sleep", []string{"sleep", "insomnia", "bedtime", "rest better"}},
	{"reduce_stress", []string{"stress", "anxiety", "anxious", "calm down", "relax", "overwhelmed"}},
	{"boost_social", []string{"social", "lonely", "friends", "isolated", "meet people"}},
	{"improve_focus", []string{"focus", "concentrate", "distracted", "productive"}},
}

func (Lexicon) GoalType(_ context.Context, text string) (string, error) {
	text = strings.ToLower(text)

	for _, entry := range lexiconCues {
		for _, cue := range entry.cues {
			if strings.Contains(text, cue) {
				return entry.goalType, nil
			}
		}
	}

	return "", ErrNoGoalDetected
}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Model is the LLM-backed variant. The reply is constrained to the
// known type set plus "none"; anything else degrades to no detection.
type Model struct {
	llm completer
}

var _ Classifier = (*Model)(nil)

func NewModel(llm completer) *Model {
	return &Model{llm: llm}
}

const classifyPromptPrefix = `Classify the user's message into exactly one wellbeing goal type.
Valid answers: reduce_stress, improve_sleep, boost_social, improve_focus, none.
Reply with the single answer word and nothing else.

Message: `

func (m *Model) GoalType(ctx context.Context, text string) (string, error) {
	reply, err := m.llm.Complete(ctx, classifyPromptPrefix+text)
	if err != nil {
		slog.Warn("Intent classification failed, treating as no goal", "error", err)
		return "", ErrNoGoalDetected
	}

	answer := strings.ToLower(strings.TrimSpace(reply))

	for _, goalType := range GoalTypes {
		if answer == goalType {
			return goalType, nil
		}
	}

	if answer != "none" {
		slog.Debug("Unrecognized goal type from classifier", "answer", answer)
	}

	return "", ErrNoGoalDetected
}

// Layered tries the model first and falls back to the lexicon, so an
// unavailable collaborator degrades to deterministic matching instead
// of losing the turn.
type Layered struct {
	Primary  Classifier
	Fallback Classifier
}

var _ Classifier = Layered{}

func (l Layered) GoalType(ctx context.Context, text string) (string, error) {
	goalType, err := l.Primary.GoalType(ctx, text)
	if err == nil {
		return goalType, nil
	}

	return l.Fallback.GoalType(ctx, text)
}
