package store

import (
	"fmt"
	"time"
)

// Composite key layout. Every lookup the engine performs is a point get
// or a sort-key range over a single user partition, never a table scan.

func JournalPartition(userID string) string {
	return "journal#" + userID
}

func ChatPartition(userID string) string {
	return "chat#" + userID
}

// ChatSort keeps transcript ordering stable even when two turns land on
// the same nanosecond timestamp.
func ChatSort(ts time.Time, seq uint64) string {
	return fmt.Sprintf("%s#%012d", ts.UTC().Format(time.RFC3339Nano), seq)
}

func SummaryPartition(userID string) string {
	return "memory#" + userID
}

func SummarySort(kind, date string) string {
	return kind + "#" + date
}

func SummaryKindPrefix(kind string) string {
	return kind + "#"
}

func GoalPartition(userID string) string {
	return "goal#" + userID
}

// ActiveGoalPartition holds one marker record per currently active goal
// type; PutIfAbsent on it is the linearization point of goal creation.
func ActiveGoalPartition(userID string) string {
	return "goalactive#" + userID
}

func PromptPartition(userID string) string {
	return "prompt#" + userID
}

func PromptSort(date, promptType string) string {
	return date + "#" + promptType
}

func UsersPartition() string {
	return "users"
}
