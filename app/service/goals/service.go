package goals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moodmate/app/model"
	"moodmate/app/store"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const defaultDurationTarget = 1

// Service is the typed goal adapter over the store. The per-type
// active marker record is the linearization point: a conditional put on
// it decides goal creation, so two concurrent creations for the same
// (user, goal type) can never both succeed.
type Service struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		store: do.MustInvoke[store.Store](di),
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

// NewWithStore builds a Service directly over a store; used by tests
// and embedded setups that bypass the injector.
func NewWithStore(st store.Store) *Service {
	return &Service{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateIfAbsent creates a new active goal of the given type unless one
// already exists, reporting created=false with the existing goal in
// that case. Safe under concurrent calls: the marker put is
// conditional, and a stale marker left behind by a crashed completion
// is cleaned up and retried once.
func (s *Service) CreateIfAbsent(ctx context.Context, userID, goalType string, durationTarget int, reason string) (bool, *model.Goal, error) {
	if durationTarget < 1 {
		durationTarget = defaultDurationTarget
	}

	for attempt := 0; attempt < 2; attempt++ {
		goal := &model.Goal{
			UserID:         userID,
			GoalID:         s.newID(),
			GoalType:       goalType,
			Status:         model.GoalStatusActive,
			Progress:       0,
			DurationTarget: durationTarget,
			Reason:         reason,
			CreatedAt:      s.now().UTC(),
		}

		err := s.store.PutIfAbsent(ctx, store.ActiveGoalPartition(userID), goalType, goal)
		if err == nil {
			if err = s.store.Put(ctx, store.GoalPartition(userID), goal.GoalID, goal); err != nil {
				return false, nil, fmt.Errorf("failed to store goal record: %w", err)
			}

			slog.Info("Created goal",
				"user_id", userID,
				"goal_type", goalType,
				"goal_id", goal.GoalID,
				"reason", reason)

			return true, goal, nil
		}

		if !errors.Is(err, store.ErrConflict) {
			return false, nil, fmt.Errorf("failed to reserve goal type: %w", err)
		}

		existing, staleID, err := s.resolveMarker(ctx, userID, goalType)
		if err != nil {
			return false, nil, err
		}

		if existing != nil {
			return false, existing, nil
		}

		// completed goal left its marker behind; free the slot and
		// retry. The delete is guarded by the stale goal ID so a racing
		// creator's fresh marker can never be removed here.
		if staleID != "" {
			if err = s.deleteMarkerIf(ctx, userID, goalType, staleID); err != nil {
				return false, nil, fmt.Errorf("failed to clear stale goal marker: %w", err)
			}
		}
	}

	return false, nil, fmt.Errorf("goal creation for %q did not settle", goalType)
}

// resolveMarker loads the goal the active marker points at. A marker
// whose goal record is missing belongs to a creation still in flight
// and counts as an existing active goal (the marker snapshot is
// returned). A marker pointing at a completed goal is stale: goal is
// nil and staleID names the goal the marker still holds. A missing
// marker yields nil goal and an empty staleID.
func (s *Service) resolveMarker(ctx context.Context, userID, goalType string) (goal *model.Goal, staleID string, err error) {
	var snapshot model.Goal

	err = s.store.Get(ctx, store.ActiveGoalPartition(userID), goalType, &snapshot)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read goal marker: %w", err)
	}

	var current model.Goal

	err = s.store.Get(ctx, store.GoalPartition(userID), snapshot.GoalID, &current)
	if errors.Is(err, store.ErrNotFound) {
		return &snapshot, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read goal record: %w", err)
	}

	if !current.Active() {
		return nil, snapshot.GoalID, nil
	}

	return &current, "", nil
}

// deleteMarkerIf removes the active-type marker only while it still
// points at the given goal, atomically with the check.
func (s *Service) deleteMarkerIf(ctx context.Context, userID, goalType, goalID string) error {
	return s.store.DeleteIf(ctx, store.ActiveGoalPartition(userID), goalType, func(raw json.RawMessage) (bool, error) {
		var snapshot model.Goal
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			return false, fmt.Errorf("failed to decode goal marker: %w", err)
		}

		return snapshot.GoalID == goalID, nil
	})
}

// ListActive returns all active goals of a user, ordered by goal type.
func (s *Service) ListActive(ctx context.Context, userID string) ([]model.Goal, error) {
	markers, err := s.store.Query(ctx, store.ActiveGoalPartition(userID), store.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to query active markers: %w", err)
	}

	var result []model.Goal

	for _, rec := range markers {
		goal, _, err := s.resolveMarker(ctx, userID, rec.Sort)
		if err != nil {
			return nil, err
		}

		if goal == nil {
			continue
		}

		result = append(result, *goal)
	}

	return result, nil
}

// Get loads one goal record.
func (s *Service) Get(ctx context.Context, userID, goalID string) (*model.Goal, error) {
	var goal model.Goal

	if err := s.store.Get(ctx, store.GoalPartition(userID), goalID, &goal); err != nil {
		return nil, fmt.Errorf("failed to read goal %s: %w", goalID, err)
	}

	return &goal, nil
}

// IncrementProgress adds delta to a goal's progress and, in the same
// atomic write, transitions it to completed once progress reaches the
// duration target. There is no observable state where progress exceeds
// the target while the goal is still active.
func (s *Service) IncrementProgress(ctx context.Context, userID, goalID string, delta int) (*model.Goal, error) {
	if delta <= 0 {
		delta = 1
	}

	var updated model.Goal

	err := s.store.Update(ctx, store.GoalPartition(userID), goalID, func(raw json.RawMessage) (any, error) {
		var goal model.Goal
		if err := json.Unmarshal(raw, &goal); err != nil {
			return nil, fmt.Errorf("failed to decode goal: %w", err)
		}

		if goal.Active() {
			goal.Progress += delta

			if goal.Progress >= goal.DurationTarget {
				goal.Status = model.GoalStatusCompleted
			}
		}

		updated = goal

		return goal, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to increment progress: %w", err)
	}

	if !updated.Active() {
		s.releaseMarker(ctx, userID, updated.GoalType, goalID)
	}

	return &updated, nil
}

// Complete force-completes the active goal of a type regardless of
// progress. Completing a type with no active goal is a no-op.
func (s *Service) Complete(ctx context.Context, userID, goalType string) error {
	var snapshot model.Goal

	err := s.store.Get(ctx, store.ActiveGoalPartition(userID), goalType, &snapshot)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read goal marker: %w", err)
	}

	err = s.store.Update(ctx, store.GoalPartition(userID), snapshot.GoalID, func(raw json.RawMessage) (any, error) {
		var goal model.Goal
		if err := json.Unmarshal(raw, &goal); err != nil {
			return nil, fmt.Errorf("failed to decode goal: %w", err)
		}

		goal.Status = model.GoalStatusCompleted

		return goal, nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to complete goal: %w", err)
	}

	s.releaseMarker(ctx, userID, goalType, snapshot.GoalID)

	slog.Info("Completed goal", "user_id", userID, "goal_type", goalType)

	return nil
}

// MarkTriggered records that a check-in for this goal was surfaced
// today, so the next evaluation skips it.
func (s *Service) MarkTriggered(ctx context.Context, userID, goalID, date string) error {
	err := s.store.Update(ctx, store.GoalPartition(userID), goalID, func(raw json.RawMessage) (any, error) {
		var goal model.Goal
		if err := json.Unmarshal(raw, &goal); err != nil {
			return nil, fmt.Errorf("failed to decode goal: %w", err)
		}

		goal.LastTriggeredDate = date

		return goal, nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark goal triggered: %w", err)
	}

	return nil
}

// releaseMarker frees the active-type slot after a completion, but only
// when the marker still points at the completed goal.
func (s *Service) releaseMarker(ctx context.Context, userID, goalType, goalID string) {
	if err := s.deleteMarkerIf(ctx, userID, goalType, goalID); err != nil {
		slog.Warn("Failed to release goal marker", "goal_type", goalType, "error", err)
	}
}
