package signals

import (
	"regexp"
	"strings"

	"moodmate/app/model"
)

const (
	// minKeywordTotal is the total mention count below which no chat
	// summary is produced at all.
	minKeywordTotal = 3
	// maxSampleMessages caps the matched messages retained as evidence.
	maxSampleMessages = 3
)

// StressKeywords is the vocabulary scanned for whole-word matches in
// user-authored chat messages.
var StressKeywords = []string{
	"tired", "burnout", "exhausted", "anxious", "panic",
	"overwhelmed", "stressed", "hopeless", "can't cope", "help",
}

var keywordPatterns = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(StressKeywords))

	for _, keyword := range StressKeywords {
		patterns[keyword] = regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	}

	return patterns
}()

// KeywordReport is the raw outcome of a keyword scan over one window.
type KeywordReport struct {
	Counts  map[string]int
	Samples []string
}

func (r KeywordReport) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}

	return total
}

// Significant reports whether the window crossed the threshold that
// warrants writing a chat summary.
func (r KeywordReport) Significant() bool {
	return r.Total() >= minKeywordTotal
}

// DetectStressKeywords scans lowercased user messages for whole-word
// stress vocabulary matches, accumulating per-keyword counts and up to
// maxSampleMessages matched messages.
func DetectStressKeywords(turns []model.ChatTurn) KeywordReport {
	report := KeywordReport{
		Counts: make(map[string]int),
	}

	for _, turn := range turns {
		if turn.Role != model.RoleUser {
			continue
		}

		text := strings.ToLower(turn.Content)
		matched := false

		for keyword, pattern := range keywordPatterns {
			hits := len(pattern.FindAllStringIndex(text, -1))
			if hits == 0 {
				continue
			}

			report.Counts[keyword] += hits
			matched = true
		}

		if matched && len(report.Samples) < maxSampleMessages {
			report.Samples = append(report.Samples, text)
		}
	}

	return report
}
