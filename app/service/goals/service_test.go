package goals

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"moodmate/app/model"
	"moodmate/app/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	svc := NewWithStore(store.NewMemoryStore())
	svc.now = func() time.Time { return time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC) }

	var seq int
	var mu sync.Mutex

	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()

		seq++

		return fmt.Sprintf("goal-%04d", seq)
	}

	return svc
}

func TestCreateIfAbsent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, goal, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "chat mentions")
	require.NoError(t, err)
	require.True(t, created)

	assert.Equal(t, "reduce_stress", goal.GoalType)
	assert.Equal(t, model.GoalStatusActive, goal.Status)
	assert.Equal(t, 0, goal.Progress)
	assert.Equal(t, 3, goal.DurationTarget)
	assert.Equal(t, "chat mentions", goal.Reason)

	created, existing, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 5, "second signal")
	require.NoError(t, err)
	assert.False(t, created, "second creation of an active type must report already active")
	assert.Equal(t, goal.GoalID, existing.GoalID)
}

func TestCreateIfAbsentDefaultsDuration(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "improve_focus", 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, goal.DurationTarget)
}

func TestCreateIfAbsentDifferentTypesCoexist(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for _, goalType := range []string{"reduce_stress", "improve_sleep"} {
		created, _, err := svc.CreateIfAbsent(ctx, "u1", goalType, 1, "")
		require.NoError(t, err)
		assert.True(t, created)
	}

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	const workers = 24

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			created, goal, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "race")
			assert.NoError(t, err)
			assert.NotNil(t, goal)

			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one concurrent creation may win")

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// markGoalCompletedKeepingMarker simulates a crash between the
// completing update and the marker release: the goal record flips to
// completed while the active-type marker stays behind.
func markGoalCompletedKeepingMarker(t *testing.T, svc *Service, userID, goalID string) {
	t.Helper()

	err := svc.store.Update(context.Background(), store.GoalPartition(userID), goalID,
		func(raw json.RawMessage) (any, error) {
			var goal model.Goal
			if err := json.Unmarshal(raw, &goal); err != nil {
				return nil, err
			}

			goal.Status = model.GoalStatusCompleted

			return goal, nil
		})
	require.NoError(t, err)
}

func TestCreateIfAbsentStaleMarkerCleanupIsGuarded(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, stale, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 1, "old signal")
	require.NoError(t, err)
	markGoalCompletedKeepingMarker(t, svc, "u1", stale.GoalID)

	// a slow creator resolves the marker as stale, then stalls
	_, staleID, err := svc.resolveMarker(ctx, "u1", "reduce_stress")
	require.NoError(t, err)
	require.Equal(t, stale.GoalID, staleID)

	// a fast creator clears the stale marker and wins the slot
	created, fresh, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "signal A")
	require.NoError(t, err)
	require.True(t, created)

	// the slow creator resumes: its cleanup must leave the fresh
	// marker in place and its retry must observe the fresh goal
	require.NoError(t, svc.deleteMarkerIf(ctx, "u1", "reduce_stress", staleID))

	created, existing, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "signal B")
	require.NoError(t, err)
	assert.False(t, created, "the slow creator must not win a second active goal")
	assert.Equal(t, fresh.GoalID, existing.GoalID)

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, fresh.GoalID, active[0].GoalID)
	assert.Equal(t, "signal A", active[0].Reason)
}

func TestCreateIfAbsentConcurrentOverStaleMarker(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, stale, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 1, "old signal")
	require.NoError(t, err)
	markGoalCompletedKeepingMarker(t, svc, "u1", stale.GoalID)

	const workers = 24

	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners int

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			created, goal, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "race")
			assert.NoError(t, err)
			assert.NotNil(t, goal)

			if created {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one creation may win over a stale marker")

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.NotEqual(t, stale.GoalID, active[0].GoalID)
}

func TestIncrementProgressCompletesAtTarget(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "improve_sleep", 3, "")
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		updated, err := svc.IncrementProgress(ctx, "u1", goal.GoalID, 1)
		require.NoError(t, err)
		assert.Equal(t, i, updated.Progress)
		assert.Equal(t, model.GoalStatusActive, updated.Status)
	}

	updated, err := svc.IncrementProgress(ctx, "u1", goal.GoalID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Progress)
	assert.Equal(t, model.GoalStatusCompleted, updated.Status,
		"the crossing increment must flip status in the same operation")

	active, err := svc.ListActive(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// the slot is free again
	created, next, err := svc.CreateIfAbsent(ctx, "u1", "improve_sleep", 5, "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, goal.GoalID, next.GoalID)
}

func TestIncrementProgressOnCompletedGoal(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "improve_focus", 1, "")
	require.NoError(t, err)

	_, err = svc.IncrementProgress(ctx, "u1", goal.GoalID, 1)
	require.NoError(t, err)

	updated, err := svc.IncrementProgress(ctx, "u1", goal.GoalID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Progress, "completed goals accumulate no further progress")
	assert.Equal(t, model.GoalStatusCompleted, updated.Status)
}

func TestIncrementProgressNeverExceedsTargetWhileActive(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 4, "")
	require.NoError(t, err)

	const workers = 8

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			updated, err := svc.IncrementProgress(ctx, "u1", goal.GoalID, 1)
			assert.NoError(t, err)

			if updated.Status == model.GoalStatusActive {
				assert.Less(t, updated.Progress, updated.DurationTarget)
			}
		}()
	}

	wg.Wait()

	final, err := svc.Get(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusCompleted, final.Status)
	assert.Equal(t, 4, final.Progress)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "boost_social", 5, "")
	require.NoError(t, err)

	require.NoError(t, svc.Complete(ctx, "u1", "boost_social"))

	final, err := svc.Get(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusCompleted, final.Status)
	assert.Equal(t, 0, final.Progress, "forced completion keeps progress untouched")

	// idempotent: no active goal of this type left
	require.NoError(t, svc.Complete(ctx, "u1", "boost_social"))
}

func TestCompleteUnknownTypeIsNoop(t *testing.T) {
	svc := newTestService()
	require.NoError(t, svc.Complete(context.Background(), "u1", "improve_sleep"))
}

func TestMarkTriggered(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, goal, err := svc.CreateIfAbsent(ctx, "u1", "reduce_stress", 3, "")
	require.NoError(t, err)

	require.NoError(t, svc.MarkTriggered(ctx, "u1", goal.GoalID, "2025-07-20"))

	final, err := svc.Get(ctx, "u1", goal.GoalID)
	require.NoError(t, err)
	assert.Equal(t, "2025-07-20", final.LastTriggeredDate)
}

func TestGoalsAreNeverDeleted(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, first, err := svc.CreateIfAbsent(ctx, "u1", "improve_sleep", 1, "")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(ctx, "u1", "improve_sleep"))

	_, second, err := svc.CreateIfAbsent(ctx, "u1", "improve_sleep", 1, "")
	require.NoError(t, err)

	// both generations remain readable as the audit trail
	for _, id := range []string{first.GoalID, second.GoalID} {
		_, err := svc.Get(ctx, "u1", id)
		assert.NoError(t, err)
	}
}
