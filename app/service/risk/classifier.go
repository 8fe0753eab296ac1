package risk

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"moodmate/app/client/llm"
	"moodmate/app/config"

	"github.com/samber/do"
)

const promptTemplate = `<analyze>
<text>%s</text>
Provide your response in this format:
<harm>[Yes or No]</harm>
<confidence>[0.0 to 1.0]</confidence>
<comment>[Optional brief explanation]</comment>
</analyze>`

var (
	harmPattern       = regexp.MustCompile(`<harm>(.*?)</harm>`)
	confidencePattern = regexp.MustCompile(`<confidence>(.*?)</confidence>`)
	commentPattern    = regexp.MustCompile(`<comment>(.*?)</comment>`)
)

type Assessment struct {
	Harm       string
	Confidence float64
	Comment    string
}

// Unknown is what every failure mode degrades to: classification must
// never throw past its caller.
var Unknown = Assessment{Harm: "Unknown", Confidence: 0}

type completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier asks a guard model whether a piece of text signals harm
// and parses its tagged reply. Call or parse failures yield Unknown.
type Classifier struct {
	llm completer
}

func New(di *do.Injector) (*Classifier, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Classifier{
		llm: llm.NewClient(cfg.OpenAI.Classifier),
	}, nil
}

func (c *Classifier) Assess(ctx context.Context, text string) Assessment {
	reply, err := c.llm.Complete(ctx, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		slog.Debug("Risk classification call failed", "error", err)
		return Unknown
	}

	return Parse(reply)
}

// Parse extracts the tagged fields from a model reply. Missing or
// malformed tags degrade to Unknown values rather than errors.
func Parse(reply string) Assessment {
	result := Unknown

	if m := harmPattern.FindStringSubmatch(reply); m != nil {
		result.Harm = trimBrackets(m[1])
	}

	if m := commentPattern.FindStringSubmatch(reply); m != nil {
		result.Comment = trimBrackets(m[1])
	}

	m := confidencePattern.FindStringSubmatch(reply)
	if m == nil {
		return result
	}

	confidence, err := strconv.ParseFloat(trimBrackets(m[1]), 64)
	if err != nil {
		slog.Debug("Unparsable risk confidence", "raw", m[1])
		return result
	}

	result.Confidence = confidence

	return result
}

var bracketPattern = regexp.MustCompile(`^\s*\[?\s*(.*?)\s*]?\s*$`)

func trimBrackets(s string) string {
	if m := bracketPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}

	return s
}
