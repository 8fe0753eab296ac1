package signals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moodmate/app/config"
	"moodmate/app/model"
	"moodmate/app/store"

	"github.com/samber/do"
)

// Service turns raw journal and chat windows into daily memory
// summaries. Each run overwrites the summary of the same kind for the
// current day; there are no append semantics.
type Service struct {
	cfg   *config.Config
	store store.Store
	now   func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:   do.MustInvoke[*config.Config](di),
		store: do.MustInvoke[store.Store](di),
		now:   time.Now,
	}, nil
}

// NewWithStore builds a Service directly, bypassing the injector; the
// clock is injectable for deterministic windows.
func NewWithStore(cfg *config.Config, st store.Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}

	return &Service{cfg: cfg, store: st, now: now}
}

// ProcessJournalMemory extracts emotion streaks from the trailing
// journal window and stores the journal_memory summary for today.
func (s *Service) ProcessJournalMemory(ctx context.Context, userID string) (*model.MemorySummary, error) {
	entries, err := s.fetchRecentJournals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal window: %w", err)
	}

	today := s.now().UTC().Format(model.DateFormat)

	summary := &model.MemorySummary{
		UserID:         userID,
		Date:           today,
		Kind:           model.SummaryJournal,
		EmotionStreaks: DetectEmotionStreaks(entries),
		EmotionCounts:  SummarizeEmotions(entries),
	}

	if err = s.putSummary(ctx, summary); err != nil {
		return nil, err
	}

	slog.Debug("Stored journal memory summary",
		"user_id", userID,
		"entries", len(entries),
		"streaks", len(summary.EmotionStreaks))

	return summary, nil
}

// ProcessChatMemory scans the trailing chat window for stress keywords
// and stores a chat_memory summary only when the total mention count
// crosses the threshold. Below it, nothing is written.
func (s *Service) ProcessChatMemory(ctx context.Context, userID string) (*model.MemorySummary, error) {
	turns, err := s.fetchRecentChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat window: %w", err)
	}

	report := DetectStressKeywords(turns)
	if !report.Significant() {
		return nil, nil
	}

	summary := &model.MemorySummary{
		UserID:         userID,
		Date:           s.now().UTC().Format(model.DateFormat),
		Kind:           model.SummaryChat,
		KeywordCounts:  report.Counts,
		SampleMessages: report.Samples,
	}

	if err = s.putSummary(ctx, summary); err != nil {
		return nil, err
	}

	slog.Debug("Stored chat memory summary",
		"user_id", userID,
		"total_mentions", report.Total())

	return summary, nil
}

// LatestSummary returns the most recent summary of a kind for a user,
// or nil when none exists.
func (s *Service) LatestSummary(ctx context.Context, userID string, kind model.SummaryKind) (*model.MemorySummary, error) {
	records, err := s.store.Query(ctx, store.SummaryPartition(userID), store.QueryOptions{
		Prefix:     store.SummaryKindPrefix(string(kind)),
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var summary model.MemorySummary
	if err = records[0].Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	return &summary, nil
}

func (s *Service) putSummary(ctx context.Context, summary *model.MemorySummary) error {
	sort := store.SummarySort(string(summary.Kind), summary.Date)

	if err := s.store.Put(ctx, store.SummaryPartition(summary.UserID), sort, summary); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}

	return nil
}

func (s *Service) fetchRecentJournals(ctx context.Context, userID string) ([]model.JournalRecord, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.Engine.JournalWindowDays).Format(model.DateFormat)

	records, err := s.store.Query(ctx, store.JournalPartition(userID), store.QueryOptions{})
	if err != nil {
		return nil, err
	}

	var entries []model.JournalRecord

	for _, rec := range records {
		if rec.Sort < cutoff {
			continue
		}

		var entry model.JournalRecord
		if err = rec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode journal record: %w", err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *Service) fetchRecentChats(ctx context.Context, userID string) ([]model.ChatTurn, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.Engine.ChatWindowDays)

	records, err := s.store.Query(ctx, store.ChatPartition(userID), store.QueryOptions{})
	if err != nil {
		return nil, err
	}

	var turns []model.ChatTurn

	for _, rec := range records {
		var turn model.ChatTurn
		if err = rec.Decode(&turn); err != nil {
			return nil, fmt.Errorf("failed to decode chat turn: %w", err)
		}

		if turn.Timestamp.Before(cutoff) {
			continue
		}

		turns = append(turns, turn)
	}

	return turns, nil
}
