package proactive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moodmate/app/model"
	"moodmate/app/service/goals"
	"moodmate/app/service/risk"
	"moodmate/app/store"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

// riskThreshold is the most-recent-journal risk score above which a
// stress alert fires.
const riskThreshold = 0.7

type assessor interface {
	Assess(ctx context.Context, text string) risk.Assessment
}

// Prompt is a system-initiated message: either a stress alert or a
// goal check-in, never both.
type Prompt struct {
	Type     model.PromptType `json:"type"`
	Message  string           `json:"message"`
	GoalID   string           `json:"goal_id,omitempty"`
	GoalType string           `json:"goal_type,omitempty"`
}

// Service decides once per user per day whether to surface a proactive
// message. Idempotent within the day: the prompt record's conditional
// put guarantees at-most-once delivery even under concurrent calls.
type Service struct {
	store    store.Store
	goalsSvc *goals.Service
	riskSvc  assessor
	now      func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		store:    do.MustInvoke[store.Store](di),
		goalsSvc: do.MustInvoke[*goals.Service](di),
		riskSvc:  do.MustInvoke[*risk.Classifier](di),
		now:      time.Now,
	}, nil
}

// Evaluate runs the daily decision procedure for one user. A nil
// prompt with nil error means "nothing to surface".
func (s *Service) Evaluate(ctx context.Context, userID string) (*Prompt, error) {
	today := s.now().UTC().Format(model.DateFormat)

	shown, err := s.alertAlreadyShown(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	if shown {
		return nil, nil
	}

	var todayEntry model.JournalRecord

	err = s.store.Get(ctx, store.JournalPartition(userID), today, &todayEntry)
	if err == nil {
		// user already self-reported today
		return nil, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check today's journal: %w", err)
	}

	latest, err := s.latestJournal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	if s.riskScore(ctx, latest) > riskThreshold {
		return s.emitStressAlert(ctx, userID, today)
	}

	return s.emitGoalCheckIn(ctx, userID, today)
}

func (s *Service) alertAlreadyShown(ctx context.Context, userID, today string) (bool, error) {
	var record model.PromptRecord

	err := s.store.Get(ctx, store.PromptPartition(userID),
		store.PromptSort(today, string(model.PromptStressAlert)), &record)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check prompt record: %w", err)
	}

	return record.Shown, nil
}

func (s *Service) latestJournal(ctx context.Context, userID string) (*model.JournalRecord, error) {
	records, err := s.store.Query(ctx, store.JournalPartition(userID), store.QueryOptions{
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query journals: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var entry model.JournalRecord
	if err = records[0].Decode(&entry); err != nil {
		return nil, fmt.Errorf("failed to decode journal record: %w", err)
	}

	return &entry, nil
}

// riskScore prefers the stored score and falls back to on-demand
// classification of the entry text. Classification failure degrades to
// zero and skips the alert branch.
func (s *Service) riskScore(ctx context.Context, entry *model.JournalRecord) float64 {
	if entry.RiskScore != nil {
		return *entry.RiskScore
	}

	if entry.Text == "" || s.riskSvc == nil {
		return 0
	}

	assessment := s.riskSvc.Assess(ctx, entry.Text)
	if assessment.Harm != "Yes" {
		return 0
	}

	return assessment.Confidence
}

// emitStressAlert writes the prompt record before returning the alert,
// so a retried or concurrent evaluation can never deliver it twice.
func (s *Service) emitStressAlert(ctx context.Context, userID, today string) (*Prompt, error) {
	record := model.PromptRecord{
		UserID:     userID,
		Date:       today,
		PromptType: model.PromptStressAlert,
		Shown:      true,
	}

	err := s.store.PutIfAbsent(ctx, store.PromptPartition(userID),
		store.PromptSort(today, string(model.PromptStressAlert)), record)
	if errors.Is(err, store.ErrConflict) {
		// a concurrent evaluation already claimed today's alert
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write prompt record: %w", err)
	}

	slog.Info("Surfacing stress alert", "user_id", userID, "date", today)

	return &Prompt{
		Type:    model.PromptStressAlert,
		Message: stressAlertMessage(s.userName(ctx, userID)),
	}, nil
}

// emitGoalCheckIn surfaces at most one check-in per evaluation: the
// first active goal not yet triggered today.
func (s *Service) emitGoalCheckIn(ctx context.Context, userID, today string) (*Prompt, error) {
	active, err := s.goalsSvc.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := pie.FindFirstUsing(active, func(g model.Goal) bool {
		return g.LastTriggeredDate != today
	})
	if idx < 0 {
		return nil, nil
	}

	goal := active[idx]

	if err = s.goalsSvc.MarkTriggered(ctx, userID, goal.GoalID, today); err != nil {
		return nil, err
	}

	slog.Debug("Surfacing goal check-in",
		"user_id", userID,
		"goal_type", goal.GoalType)

	return &Prompt{
		Type:     model.PromptGoalCheckIn,
		Message:  CheckInQuestion(goal.GoalType),
		GoalID:   goal.GoalID,
		GoalType: goal.GoalType,
	}, nil
}

func (s *Service) userName(ctx context.Context, userID string) string {
	var user model.User

	if err := s.store.Get(ctx, store.UsersPartition(), userID, &user); err != nil {
		return ""
	}

	return user.Name
}
