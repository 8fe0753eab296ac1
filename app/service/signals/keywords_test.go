package signals

import (
	"testing"
	"time"

	"moodmate/app/model"

	"github.com/stretchr/testify/assert"
)

func userTurn(content string) model.ChatTurn {
	return model.ChatTurn{
		UserID:    "u1",
		Timestamp: time.Now(),
		Role:      model.RoleUser,
		Content:   content,
	}
}

func TestDetectStressKeywords(t *testing.T) {
	turns := []model.ChatTurn{
		userTurn("I'm so tired of everything"),
		userTurn("still tired and a bit Anxious today"),
	}

	report := DetectStressKeywords(turns)

	assert.Equal(t, map[string]int{"tired": 2, "anxious": 1}, report.Counts)
	assert.Equal(t, 3, report.Total())
	assert.True(t, report.Significant())
	assert.Len(t, report.Samples, 2)
}

func TestDetectStressKeywordsWholeWordOnly(t *testing.T) {
	report := DetectStressKeywords([]model.ChatTurn{
		userTurn("I retired last year, feeling helpless but fine"),
	})

	// "retired" must not match "tired", "helpless" must not match "help"
	assert.Empty(t, report.Counts)
	assert.False(t, report.Significant())
}

func TestDetectStressKeywordsIgnoresAssistantTurns(t *testing.T) {
	report := DetectStressKeywords([]model.ChatTurn{
		{Role: model.RoleAssistant, Content: "you sound tired, anxious and stressed"},
		userTurn("thanks"),
	})

	assert.Empty(t, report.Counts)
}

func TestDetectStressKeywordsBelowThreshold(t *testing.T) {
	report := DetectStressKeywords([]model.ChatTurn{
		userTurn("feeling stressed"),
		userTurn("a bit anxious"),
	})

	assert.Equal(t, 2, report.Total())
	assert.False(t, report.Significant())
}

func TestDetectStressKeywordsSampleCap(t *testing.T) {
	turns := []model.ChatTurn{
		userTurn("tired one"),
		userTurn("tired two"),
		userTurn("tired three"),
		userTurn("tired four"),
	}

	report := DetectStressKeywords(turns)

	assert.Equal(t, 4, report.Counts["tired"])
	assert.Len(t, report.Samples, 3)
}
