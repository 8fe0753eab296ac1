package conversation

import "strings"

// Reply is the routed outcome of one user turn. Proactive marks
// replies produced by the goal machinery rather than free dialogue.
type Reply struct {
	Message   string `json:"message"`
	Proactive bool   `json:"proactive"`
}

type pendingIntent string

const (
	intentSuggest pendingIntent = "suggest"
	intentCreate  pendingIntent = "create"
)

// Context is the ephemeral per-user slot of the goal-creation flow.
// It lives only in process memory and is lost on restart, which is an
// accepted limitation of single-instance deployments.
type Context struct {
	GoalType         string
	Intent           pendingIntent
	AwaitingDuration bool
}

func prettyType(goalType string) string {
	return strings.ReplaceAll(goalType, "_", " ")
}
