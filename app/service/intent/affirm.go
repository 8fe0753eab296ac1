package intent

import "strings"

// similarityCutoff is the close-match threshold for fuzzy affirmation
// detection.
const similarityCutoff = 0.8

var affirmationLexicon = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay", "alright",
	"sounds good", "yes please", "lets do it", "go ahead", "definitely",
}

// explicitRequestCues mark an utterance as an explicit goal request
// before any classification happens.
var explicitRequestCues = []string{
	"create a goal", "set a goal", "new goal", "help me", "i want to work on",
}

// progressVocabularies hold, per goal type, the phrases that count as
// the user reporting progress against that goal.
var progressVocabularies = map[string][]string{
	"reduce_stress": {"calm", "relaxed", "less stressed", "not anxious", "better now"},
	"improve_sleep": {"slept well", "good sleep", "went to bed early", "consistent sleep", "slept early", "deep sleep"},
	"boost_social":  {"talked", "call", "met", "friend", "hangout", "socialized", "messaged"},
	"improve_focus": {"focused", "concentrated", "productive", "avoided distractions"},
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	for _, r := range text {
		if r == '\'' || r == '.' || r == ',' || r == '!' || r == '?' {
			continue
		}

		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity is a close-match ratio over two strings: twice the length
// of their longest common subsequence divided by their total length.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}

		prev, cur = cur, prev
	}

	lcs := prev[len(rb)]

	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// IsAffirmation reports whether text is a close match of the
// affirmation lexicon.
func IsAffirmation(text string) bool {
	text = normalize(text)
	if text == "" {
		return false
	}

	for _, phrase := range affirmationLexicon {
		if Similarity(text, phrase) >= similarityCutoff {
			return true
		}
	}

	return false
}

// IsExplicitGoalRequest reports whether the utterance asks for a goal
// outright ("create a goal", "help me ...").
func IsExplicitGoalRequest(text string) bool {
	text = normalize(text)

	for _, cue := range explicitRequestCues {
		if strings.Contains(text, cue) {
			return true
		}
	}

	return false
}

// MatchesProgress reports whether the utterance contains one of the
// goal type's progress phrases.
func MatchesProgress(goalType, text string) bool {
	text = normalize(text)

	for _, phrase := range progressVocabularies[goalType] {
		if strings.Contains(text, phrase) {
			return true
		}
	}

	return false
}
