package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"moodmate/app/client/llm"
	"moodmate/app/config"
	"moodmate/app/model"
	"moodmate/app/service/goals"
	"moodmate/app/service/intent"
	"moodmate/app/service/proactive"
	"moodmate/app/store"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const (
	historyLimit       = 10
	fallbackReply      = "I'm here for you. Tell me more about how you're feeling. 💙"
	createdReason      = "user request"
	defaultNewDuration = 1
)

type replier interface {
	Reply(ctx context.Context, history, text string) (string, error)
}

// Service routes every inbound chat turn through a fixed-priority
// state machine: duration slot-filling, explicit goal requests,
// suggestion confirmation, goal detection, goal check-ins and progress,
// then the free-form dialogue fallback.
type Service struct {
	store      store.Store
	goalsSvc   *goals.Service
	classifier intent.Classifier
	replyAgent replier
	contexts   *contextTable
	now        func() time.Time
	seq        atomic.Uint64
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	replyAgent, err := NewReplyAgent(cfg.OpenAI.Reply)
	if err != nil {
		return nil, fmt.Errorf("failed to build reply agent: %w", err)
	}

	return &Service{
		store:    do.MustInvoke[store.Store](di),
		goalsSvc: do.MustInvoke[*goals.Service](di),
		classifier: intent.Layered{
			Primary:  intent.NewModel(llm.NewClient(cfg.OpenAI.Classifier)),
			Fallback: intent.Lexicon{},
		},
		replyAgent: replyAgent,
		contexts:   newContextTable(),
		now:        time.Now,
	}, nil
}

// HandleTurn consumes one user utterance and produces exactly one
// reply. Both the utterance and the reply are appended to the chat
// transcript as a side effect.
func (s *Service) HandleTurn(ctx context.Context, userID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Reply{Message: fallbackReply}, nil
	}

	unlock := s.contexts.lock(userID)
	defer unlock()

	s.registerUser(ctx, userID)
	s.appendTurn(ctx, userID, model.RoleUser, text)

	reply, err := s.route(ctx, userID, text)
	if err != nil {
		return nil, err
	}

	s.appendTurn(ctx, userID, model.RoleAssistant, reply.Message)

	return reply, nil
}

func (s *Service) route(ctx context.Context, userID, text string) (*Reply, error) {
	// 1 / 1b: duration slot-filling has the highest priority
	if slot, ok := s.contexts.get(userID); ok && slot.AwaitingDuration {
		return s.fillDuration(ctx, userID, slot, text)
	}

	// 2: explicit goal request opens the slot-filling flow
	if intent.IsExplicitGoalRequest(text) {
		if reply, handled := s.handleExplicitRequest(ctx, userID, text); handled {
			return reply, nil
		}
	}

	// 3: affirmation resolving a pending suggestion; anything else
	// abandons the slot
	if slot, ok := s.contexts.get(userID); ok {
		s.contexts.clear(userID)

		if intent.IsAffirmation(text) {
			return s.createGoal(ctx, userID, slot.GoalType, defaultNewDuration)
		}
	}

	// 4: goal type detected in a plain utterance becomes a suggestion
	if reply := s.suggestGoal(ctx, userID, text); reply != nil {
		return reply, nil
	}

	// 5 / 5b: progress and check-ins on active goals
	if reply, err := s.handleActiveGoals(ctx, userID, text); err != nil || reply != nil {
		return reply, err
	}

	// 6: free-form dialogue fallback
	return s.fallback(ctx, userID, text), nil
}

var durationPattern = regexp.MustCompile(`\d+`)

func parseDuration(text string) (int, bool) {
	m := durationPattern.FindString(text)
	if m == "" {
		return 0, false
	}

	d, err := strconv.Atoi(m)
	if err != nil || d < 1 {
		return 0, false
	}

	return d, true
}

func (s *Service) fillDuration(ctx context.Context, userID string, slot Context, text string) (*Reply, error) {
	d, ok := parseDuration(text)
	if !ok {
		// stay in the awaiting state and re-ask
		return &Reply{
			Message:   "Just give me a number of days, for example \"5 days\".",
			Proactive: true,
		}, nil
	}

	s.contexts.clear(userID)

	return s.createGoal(ctx, userID, slot.GoalType, d)
}

// handleExplicitRequest reports handled=false when classification
// degrades to no detection, so the turn falls through to later guards.
func (s *Service) handleExplicitRequest(ctx context.Context, userID, text string) (*Reply, bool) {
	goalType, err := s.classifier.GoalType(ctx, text)
	if err != nil {
		if !errors.Is(err, intent.ErrNoGoalDetected) {
			slog.Warn("Goal classification failed", "user_id", userID, "error", err)
		}

		return nil, false
	}

	active, err := s.activeGoalOfType(ctx, userID, goalType)
	if err != nil {
		slog.Error("Failed to list active goals", "user_id", userID, "error", err)
		return nil, false
	}

	if active != nil {
		s.contexts.clear(userID)

		return &Reply{
			Message:   fmt.Sprintf("You're already working on a %s goal, keep going! 💪", prettyType(goalType)),
			Proactive: true,
		}, true
	}

	s.contexts.set(userID, Context{
		GoalType:         goalType,
		Intent:           intentCreate,
		AwaitingDuration: true,
	})

	return &Reply{
		Message:   fmt.Sprintf("Let's set up a %s goal. How many days should we aim for?", prettyType(goalType)),
		Proactive: true,
	}, true
}

func (s *Service) suggestGoal(ctx context.Context, userID, text string) *Reply {
	goalType, err := s.classifier.GoalType(ctx, text)
	if err != nil {
		return nil
	}

	active, err := s.activeGoalOfType(ctx, userID, goalType)
	if err != nil || active != nil {
		return nil
	}

	s.contexts.set(userID, Context{GoalType: goalType, Intent: intentSuggest})

	return &Reply{
		Message:   fmt.Sprintf("It sounds like working on %s could help. Want me to set that up as a goal?", prettyType(goalType)),
		Proactive: true,
	}
}

func (s *Service) handleActiveGoals(ctx context.Context, userID, text string) (*Reply, error) {
	active, err := s.goalsSvc.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()

	// 5b first: a progress report beats a new check-in question
	for _, goal := range active {
		if !intent.MatchesProgress(goal.GoalType, text) {
			continue
		}

		updated, err := s.goalsSvc.IncrementProgress(ctx, userID, goal.GoalID, 1)
		if err != nil {
			return nil, err
		}

		message := proactive.ProgressReply(goal.GoalType)
		if updated.Status == model.GoalStatusCompleted {
			message += " 🎉 Goal completed!"
		} else {
			message += fmt.Sprintf(" Progress: %d of %d days.", updated.Progress, updated.DurationTarget)
		}

		return &Reply{Message: message, Proactive: true}, nil
	}

	// 5: one check-in per day per goal
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

	return &Reply{
		Message:   proactive.CheckInQuestion(goal.GoalType),
		Proactive: true,
	}, nil
}

func (s *Service) fallback(ctx context.Context, userID, text string) *Reply {
	history, err := s.recentHistory(ctx, userID)
	if err != nil {
		slog.Warn("Failed to fetch chat history", "user_id", userID, "error", err)
	}

	message, err := s.replyAgent.Reply(ctx, history, text)
	if err != nil {
		slog.Warn("Reply generation failed, using canned fallback",
			"user_id", userID, "error", err)

		return &Reply{Message: fallbackReply}
	}

	return &Reply{Message: message}
}

func (s *Service) createGoal(ctx context.Context, userID, goalType string, duration int) (*Reply, error) {
	created, goal, err := s.goalsSvc.CreateIfAbsent(ctx, userID, goalType, duration, createdReason)
	if err != nil {
		return nil, err
	}

	if !created {
		return &Reply{
			Message:   fmt.Sprintf("You're already working on a %s goal, keep going! 💪", prettyType(goal.GoalType)),
			Proactive: true,
		}, nil
	}

	return &Reply{
		Message: fmt.Sprintf("Goal set: %s for %d day(s). I'll check in with you along the way 🌱",
			prettyType(goal.GoalType), goal.DurationTarget),
		Proactive: true,
	}, nil
}

func (s *Service) activeGoalOfType(ctx context.Context, userID, goalType string) (*model.Goal, error) {
	active, err := s.goalsSvc.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	idx := pie.FindFirstUsing(active, func(g model.Goal) bool {
		return g.GoalType == goalType
	})
	if idx < 0 {
		return nil, nil
	}

	return &active[idx], nil
}

func (s *Service) recentHistory(ctx context.Context, userID string) (string, error) {
	records, err := s.store.Query(ctx, store.ChatPartition(userID), store.QueryOptions{
		Descending: true,
		Limit:      historyLimit,
	})
	if err != nil {
		return "", err
	}

	var builder strings.Builder

	// records arrive newest first; render chronologically
	for i := len(records) - 1; i >= 0; i-- {
		var turn model.ChatTurn
		if err = records[i].Decode(&turn); err != nil {
			return "", err
		}

		role := "User"
		if turn.Role == model.RoleAssistant {
			role = "Assistant"
		}

		fmt.Fprintf(&builder, "%s: %s\n", role, turn.Content)
	}

	return strings.TrimSpace(builder.String()), nil
}

func (s *Service) appendTurn(ctx context.Context, userID string, role model.Role, content string) {
	ts := s.now().UTC()

	turn := model.ChatTurn{
		UserID:    userID,
		Timestamp: ts,
		Role:      role,
		Content:   content,
	}

	sort := store.ChatSort(ts, s.seq.Add(1))

	if err := s.store.Put(ctx, store.ChatPartition(userID), sort, turn); err != nil {
		slog.Error("Failed to append chat turn", "user_id", userID, "error", err)
	}
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

func (s *Service) today() string {
	return s.now().UTC().Format(model.DateFormat)
}
