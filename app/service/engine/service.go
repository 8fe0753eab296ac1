package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"moodmate/app/config"
	"moodmate/app/model"
	"moodmate/app/service/goals"
	"moodmate/app/service/signals"
	"moodmate/app/store"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	sweepConcurrency     = 8
	signalDurationTarget = 3
)

// negative emotions whose streaks count as a stress signal
var stressEmotions = map[string]bool{
	"sad":     true,
	"anxious": true,
	"angry":   true,
}

// Service is the background loop: every sweep it refreshes memory
// summaries for all registered users and turns fresh stress signals
// into goals.
type Service struct {
	cfg        *config.Config
	store      store.Store
	signalsSvc *signals.Service
	goalsSvc   *goals.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:        do.MustInvoke[*config.Config](di),
		store:      do.MustInvoke[store.Store](di),
		signalsSvc: do.MustInvoke[*signals.Service](di),
		goalsSvc:   do.MustInvoke[*goals.Service](di),
	}, nil
}

func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Engine.SweepInterval)
	defer ticker.Stop()

	for {
		if err := s.runSweep(ctx); err != nil {
			slog.Error("Error running sweep", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) runSweep(ctx context.Context) error {
	users, err := s.listUsers(ctx)
	if err != nil {
		return fmt.Errorf("could not list users: %w", err)
	}

	start := time.Now()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(sweepConcurrency)

	for _, userID := range users {
		group.Go(func() error {
			if err := s.processUser(groupCtx, userID); err != nil {
				// one bad user never aborts the sweep
				slog.Warn("Sweep failed for user", "user_id", userID, "error", err)
			}

			return nil
		})
	}

	if err = group.Wait(); err != nil {
		return err
	}

	slog.Debug("Sweep finished",
		"users", len(users),
		"duration", time.Since(start))

	return nil
}

func (s *Service) processUser(ctx context.Context, userID string) error {
	journalSummary, err := s.signalsSvc.ProcessJournalMemory(ctx, userID)
	if err != nil {
		return fmt.Errorf("journal extraction: %w", err)
	}

	chatSummary, err := s.signalsSvc.ProcessChatMemory(ctx, userID)
	if err != nil {
		return fmt.Errorf("chat extraction: %w", err)
	}

	if reason := journalStressReason(journalSummary); reason != "" {
		if err = s.triggerGoal(ctx, userID, reason); err != nil {
			return err
		}
	}

	if reason := chatStressReason(chatSummary); reason != "" {
		if err = s.triggerGoal(ctx, userID, reason); err != nil {
			return err
		}
	}

	return nil
}

// journalStressReason reports why the journal summary counts as a
// stress signal, or "" when it does not.
func journalStressReason(summary *model.MemorySummary) string {
	if summary == nil {
		return ""
	}

	for _, streak := range summary.EmotionStreaks {
		if stressEmotions[streak.Emotion] {
			return fmt.Sprintf("%s streak of %d days", streak.Emotion, streak.Length)
		}
	}

	return ""
}

func chatStressReason(summary *model.MemorySummary) string {
	if summary == nil {
		return ""
	}

	return fmt.Sprintf("%d stress-related chat mentions", summary.KeywordTotal())
}

func (s *Service) triggerGoal(ctx context.Context, userID, reason string) error {
	created, _, err := s.goalsSvc.CreateIfAbsent(ctx, userID, "reduce_stress", signalDurationTarget, reason)
	if err != nil {
		return fmt.Errorf("goal trigger: %w", err)
	}

	if created {
		slog.Info("Stress signal triggered goal",
			"user_id", userID,
			"reason", reason,
			"telegram", true)
	}

	return nil
}

func (s *Service) listUsers(ctx context.Context) ([]string, error) {
	records, err := s.store.Query(ctx, store.UsersPartition(), store.QueryOptions{})
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(records))
	for _, rec := range records {
		users = append(users, rec.Sort)
	}

	return users, nil
}
