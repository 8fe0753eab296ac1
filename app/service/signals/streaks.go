package signals

import "moodmate/app/model"

const minStreakLength = 3

// DetectEmotionStreaks walks chronologically ordered journal records
// and emits every run of at least minStreakLength identical dominant
// emotions, including a run that ends at the window boundary.
func DetectEmotionStreaks(entries []model.JournalRecord) []model.EmotionStreak {
	var streaks []model.EmotionStreak

	if len(entries) == 0 {
		return streaks
	}

	prev := ""
	count := 0

	for _, entry := range entries {
		emotion := entry.DominantEmotion

		if emotion == prev {
			count++
			continue
		}

		if count >= minStreakLength {
			streaks = append(streaks, model.EmotionStreak{Emotion: prev, Length: count})
		}

		prev = emotion
		count = 1
	}

	if count >= minStreakLength {
		streaks = append(streaks, model.EmotionStreak{Emotion: prev, Length: count})
	}

	return streaks
}

// SummarizeEmotions counts dominant emotions over the window.
func SummarizeEmotions(entries []model.JournalRecord) map[string]int {
	counts := make(map[string]int)

	for _, entry := range entries {
		if entry.DominantEmotion == "" {
			continue
		}

		counts[entry.DominantEmotion]++
	}

	return counts
}
