package proactive

import "fmt"

var checkInQuestions = map[string]string{
	"reduce_stress": "Feeling stressed lately? Let's try a short breathing exercise 🌬️",
	"improve_sleep": "Sleep is crucial for your well-being. Did you sleep well recently?",
	"boost_social":  "Have you had any meaningful conversations or social time lately?",
	"improve_focus": "How has your focus been lately? Managed to stay on task?",
}

var progressReplies = map[string]string{
	"reduce_stress": "Glad to hear you're feeling better! 🌈",
	"improve_sleep": "Tracking your sleep! 💤",
	"boost_social":  "That's awesome! Social connections matter 💬",
	"improve_focus": "Nice work! Staying focused really pays off. 🔍",
}

// CheckInQuestion is the proactive question asked for a goal type.
func CheckInQuestion(goalType string) string {
	if q, ok := checkInQuestions[goalType]; ok {
		return q
	}

	return fmt.Sprintf("How is your %s goal going?", goalType)
}

// ProgressReply acknowledges reported progress for a goal type.
func ProgressReply(goalType string) string {
	if r, ok := progressReplies[goalType]; ok {
		return r
	}

	return "Great, progress noted!"
}

func stressAlertMessage(name string) string {
	if name == "" {
		name = "there"
	}

	return fmt.Sprintf("Hey %s, you seemed stressed recently. Want to talk or do a quick breathing exercise?", name)
}
