package model

import "time"

// DateFormat is the canonical day key used across journal, summary and
// prompt records.
const DateFormat = "2006-01-02"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// JournalRecord is written by the journaling service and read-only here.
// At most one record exists per (user, date).
type JournalRecord struct {
	UserID          string   `json:"user_id"`
	Date            string   `json:"date"`
	Text            string   `json:"text,omitempty"`
	DominantEmotion string   `json:"dominant_emotion"`
	RiskScore       *float64 `json:"risk_score,omitempty"`
}

// ChatTurn is a single message of the per-user chat transcript,
// ordered by timestamp ascending.
type ChatTurn struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

type SummaryKind string

const (
	SummaryJournal SummaryKind = "journal_memory"
	SummaryChat    SummaryKind = "chat_memory"
)

// EmotionStreak is a run of >=3 identical dominant emotions over
// consecutive journal entries.
type EmotionStreak struct {
	Emotion string `json:"emotion"`
	Length  int    `json:"length"`
}

// MemorySummary is the extractor output, one per (user, kind, date),
// overwritten on every extraction run.
type MemorySummary struct {
	UserID         string         `json:"user_id"`
	Date           string         `json:"date"`
	Kind           SummaryKind    `json:"kind"`
	EmotionStreaks []EmotionStreak `json:"emotion_streaks,omitempty"`
	EmotionCounts  map[string]int `json:"emotion_counts,omitempty"`
	KeywordCounts  map[string]int `json:"stress_keyword_counts,omitempty"`
	SampleMessages []string       `json:"sample_messages,omitempty"`
}

func (s *MemorySummary) KeywordTotal() int {
	total := 0
	for _, n := range s.KeywordCounts {
		total += n
	}

	return total
}

type GoalStatus string

const (
	GoalStatusActive    GoalStatus = "active"
	GoalStatusCompleted GoalStatus = "completed"
)

// Goal is a tracked self-improvement objective. For a given
// (user, goal_type) at most one goal may be active at a time; goals are
// never deleted, only transitioned to completed.
type Goal struct {
	UserID            string     `json:"user_id"`
	GoalID            string     `json:"goal_id"`
	GoalType          string     `json:"goal_type"`
	Status            GoalStatus `json:"status"`
	Progress          int        `json:"progress"`
	DurationTarget    int        `json:"duration_target"`
	Reason            string     `json:"reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	LastTriggeredDate string     `json:"last_triggered_date,omitempty"`
}

func (g *Goal) Active() bool {
	return g.Status == GoalStatusActive
}

type PromptType string

const (
	PromptStressAlert PromptType = "stress_alert"
	PromptGoalCheckIn PromptType = "goal_checkin"
)

// PromptRecord marks a proactive message as delivered; at most one
// exists per (user, date, prompt type).
type PromptRecord struct {
	UserID     string     `json:"user_id"`
	Date       string     `json:"date"`
	PromptType PromptType `json:"prompt_type"`
	Shown      bool       `json:"shown"`
}

// User is the registry entry the engine sweeps over.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
}
