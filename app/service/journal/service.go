package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"moodmate/app/client/llm"
	"moodmate/app/config"
	"moodmate/app/model"
	"moodmate/app/service/risk"
	"moodmate/app/store"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

// emotions the ingestion classifier is allowed to answer with
var knownEmotions = []string{
	"sad", "anxious", "angry", "happy", "calm", "neutral",
}

const fallbackEmotion = "neutral"

const emotionPromptPrefix = `Classify the dominant emotion of the journal entry below.
Answer with exactly one word from this list: sad, anxious, angry, happy, calm, neutral.

Entry: `

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type assessor interface {
	Assess(ctx context.Context, text string) risk.Assessment
}

// Service ingests journal entries: each entry is tagged with a
// dominant emotion and a risk score at write time, so downstream
// consumers never re-run classification on the hot path.
type Service struct {
	store   store.Store
	emotion completer
	riskSvc assessor
	now     func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Service{
		store:   do.MustInvoke[store.Store](di),
		emotion: llm.NewClient(cfg.OpenAI.Classifier),
		riskSvc: do.MustInvoke[*risk.Classifier](di),
		now:     time.Now,
	}, nil
}

// NewWithStore builds a Service directly over a store, without
// classifiers: entries come out neutral and unscored. Used by tests
// and embedded setups that bypass the injector.
func NewWithStore(st store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{store: st, now: now}
}

// Add stores one journal entry, overwriting any entry of the same day.
// Classification failures degrade: emotion falls back to neutral and
// the risk score is simply left unset.
func (s *Service) Add(ctx context.Context, userID, date, text string) (*model.JournalRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("journal text is empty")
	}

	if date == "" {
		date = s.now().UTC().Format(model.DateFormat)
	}

	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return nil, fmt.Errorf("invalid journal date %q: %w", date, err)
	}

	// journal-only users must still show up in the sweep
	s.registerUser(ctx, userID)

	entry := model.JournalRecord{
		UserID:          userID,
		Date:            date,
		Text:            text,
		DominantEmotion: s.classifyEmotion(ctx, text),
	}

	if s.riskSvc != nil {
		assessment := s.riskSvc.Assess(ctx, text)
		if assessment.Harm == "Yes" {
			score := assessment.Confidence
			entry.RiskScore = &score
		}
	}

	if err := s.store.Put(ctx, store.JournalPartition(userID), date, entry); err != nil {
		return nil, fmt.Errorf("failed to store journal entry: %w", err)
	}

	slog.Debug("Stored journal entry",
		"user_id", userID,
		"date", date,
		"emotion", entry.DominantEmotion)

	return &entry, nil
}

// List returns all journal entries of a user in date order.
func (s *Service) List(ctx context.Context, userID string) ([]model.JournalRecord, error) {
	records, err := s.store.Query(ctx, store.JournalPartition(userID), store.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}

	entries := make([]model.JournalRecord, 0, len(records))

	for _, rec := range records {
		var entry model.JournalRecord
		if err = rec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode journal entry: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Service) registerUser(ctx context.Context, userID string) {
	user := model.User{
		UserID:    userID,
		FirstSeen: s.now().UTC(),
	}

	err := s.store.PutIfAbsent(ctx, store.UsersPartition(), userID, user)
	if err != nil && !errors.Is(err, store.ErrConflict) {
		slog.Warn("Failed to register user", "user_id", userID, "error", err)
	}
}

func (s *Service) classifyEmotion(ctx context.Context, text string) string {
	if s.emotion == nil {
		return fallbackEmotion
	}

	reply, err := s.emotion.Complete(ctx, emotionPromptPrefix+text)
	if err != nil {
		slog.Debug("Emotion classification failed", "error", err)
		return fallbackEmotion
	}

	answer := strings.ToLower(strings.TrimSpace(reply))
	if !pie.Contains(knownEmotions, answer) {
		return fallbackEmotion
	}

	return answer
}
