package signals

import (
	"context"
	"testing"
	"time"

	"moodmate/app/config"
	"moodmate/app/model"
	"moodmate/app/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()

	st := store.NewMemoryStore()

	return &Service{
		cfg: &config.Config{
			Engine: config.Engine{JournalWindowDays: 14, ChatWindowDays: 7},
		},
		store: st,
		now:   func() time.Time { return time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC) },
	}, st
}

func putJournal(t *testing.T, st store.Store, entry model.JournalRecord) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), store.JournalPartition(entry.UserID), entry.Date, entry))
}

func putChat(t *testing.T, st store.Store, turn model.ChatTurn, seq uint64) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(),
		store.ChatPartition(turn.UserID), store.ChatSort(turn.Timestamp, seq), turn))
}

func TestProcessJournalMemory(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	for i, emotion := range []string{"sad", "sad", "sad", "happy"} {
		putJournal(t, st, model.JournalRecord{
			UserID:          "u1",
			Date:            time.Date(2025, 7, 16+i, 0, 0, 0, 0, time.UTC).Format(model.DateFormat),
			DominantEmotion: emotion,
		})
	}

	summary, err := svc.ProcessJournalMemory(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, []model.EmotionStreak{{Emotion: "sad", Length: 3}}, summary.EmotionStreaks)
	assert.Equal(t, map[string]int{"sad": 3, "happy": 1}, summary.EmotionCounts)

	stored, err := svc.LatestSummary(ctx, "u1", model.SummaryJournal)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "2025-07-20", stored.Date)
}

func TestProcessJournalMemoryIgnoresOldEntries(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	// three sad days, but all outside the 14-day window
	for i := 0; i < 3; i++ {
		putJournal(t, st, model.JournalRecord{
			UserID:          "u1",
			Date:            time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC).Format(model.DateFormat),
			DominantEmotion: "sad",
		})
	}

	summary, err := svc.ProcessJournalMemory(ctx, "u1")
	require.NoError(t, err)

	assert.Empty(t, summary.EmotionStreaks)
	assert.Empty(t, summary.EmotionCounts)
}

func TestProcessJournalMemoryOverwritesSameDay(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	putJournal(t, st, model.JournalRecord{UserID: "u1", Date: "2025-07-19", DominantEmotion: "happy"})

	_, err := svc.ProcessJournalMemory(ctx, "u1")
	require.NoError(t, err)

	for _, date := range []string{"2025-07-17", "2025-07-18"} {
		putJournal(t, st, model.JournalRecord{UserID: "u1", Date: date, DominantEmotion: "happy"})
	}

	_, err = svc.ProcessJournalMemory(ctx, "u1")
	require.NoError(t, err)

	records, err := st.Query(ctx, store.SummaryPartition("u1"), store.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1, "same-day rerun must overwrite, not append")

	stored, err := svc.LatestSummary(ctx, "u1", model.SummaryJournal)
	require.NoError(t, err)
	assert.Equal(t, []model.EmotionStreak{{Emotion: "happy", Length: 3}}, stored.EmotionStreaks)
}

func TestProcessChatMemory(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	base := time.Date(2025, 7, 19, 10, 0, 0, 0, time.UTC)

	putChat(t, st, model.ChatTurn{UserID: "u1", Timestamp: base, Role: model.RoleUser, Content: "so tired"}, 0)
	putChat(t, st, model.ChatTurn{UserID: "u1", Timestamp: base.Add(time.Minute), Role: model.RoleUser, Content: "tired again"}, 1)
	putChat(t, st, model.ChatTurn{UserID: "u1", Timestamp: base.Add(2 * time.Minute), Role: model.RoleUser, Content: "and anxious"}, 2)

	summary, err := svc.ProcessChatMemory(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, summary)

	assert.Equal(t, map[string]int{"tired": 2, "anxious": 1}, summary.KeywordCounts)
	assert.Equal(t, 3, summary.KeywordTotal())
}

func TestProcessChatMemoryBelowThresholdWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	base := time.Date(2025, 7, 19, 10, 0, 0, 0, time.UTC)
	putChat(t, st, model.ChatTurn{UserID: "u1", Timestamp: base, Role: model.RoleUser, Content: "stressed"}, 0)

	summary, err := svc.ProcessChatMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, summary)

	stored, err := svc.LatestSummary(ctx, "u1", model.SummaryChat)
	require.NoError(t, err)
	assert.Nil(t, stored, "absence of signal, not a zero-valued record")
}

func TestProcessChatMemoryIgnoresTurnsOutsideWindow(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	old := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		putChat(t, st, model.ChatTurn{
			UserID: "u1", Timestamp: old.Add(time.Duration(i) * time.Minute),
			Role: model.RoleUser, Content: "tired",
		}, uint64(i))
	}

	summary, err := svc.ProcessChatMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, summary)
}
