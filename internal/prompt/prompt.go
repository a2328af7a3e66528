// Package prompt assembles the system and reflection prompts that steer
// models toward structured thought output.
//
// Everything here is pure string assembly. The intended loop: recall prior
// thoughts, wrap the user prompt with the recalled context, enforce one of
// the annotation styles on the system prompt, complete, ingest the tagged
// output, and periodically reflect.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

// ErrUnsupportedMode indicates a reflection mode with no registered template.
var ErrUnsupportedMode = errors.New("unsupported reflection mode")

// TagGuidance instructs a model to confine intermediate reasoning to
// structured <thought> tags.
const TagGuidance = `Use structured thoughts with XML tags only:
<thought id="unique-id" category="reasoning|fact|plan|reflection" confidence="0.00-1.00">content</thought>
Do not expose hidden reasoning outside <thought> tags.
When key decisions are reached, call reflect() before finalizing the response.
`

// SystemPromptGeneral is the base system prompt for analytical sessions.
const SystemPromptGeneral = "You are an analytical assistant with persistent memory. " +
	TagGuidance +
	"\nProduce a concise final answer after thought tags."

// SystemPromptAgent is the base system prompt for autonomous agent runs.
// The orchestrator uses it when the caller supplies no system prompt.
const SystemPromptAgent = "You are an autonomous agent operating with thought memory support. " +
	TagGuidance +
	"\nAt plan milestones, emit thought tags and request reflect() for self-check."

// EnforcementStyle selects which thought annotation style the system
// prompt demands from the model.
type EnforcementStyle string

// Supported enforcement styles.
const (
	// EnforcementXML requires <thought ...>...</thought> tags.
	EnforcementXML EnforcementStyle = "xml"
	// EnforcementSlash requires /thought[...] tags.
	EnforcementSlash EnforcementStyle = "slash"
	// EnforcementAuto prefers XML but accepts slash tags.
	EnforcementAuto EnforcementStyle = "auto"
)

// ApplySystemEnforcement appends the annotation-style instruction for the
// given style to a base system prompt. Unknown styles behave like
// EnforcementAuto.
func ApplySystemEnforcement(base string, style EnforcementStyle) string {
	switch style {
	case EnforcementXML:
		return base + "\n" + TagGuidance +
			"\nUse only XML <thought ...> tags for intermediate reasoning."
	case EnforcementSlash:
		return base +
			"\nFor intermediate reasoning, use /thought[...] tags. Keep final answer outside those tags."
	default:
		return base + "\nPrefer XML <thought> tags; /thought[...] is acceptable fallback."
	}
}

// Reflection modes with registered templates.
const (
	ModeReasoning              = "reasoning"
	ModeSummarization          = "summarization"
	ModeContradictionDetection = "contradiction_detection"
	ModePlanning               = "planning"
)

// ReflectionTemplates maps each reflection mode to its instruction template.
var ReflectionTemplates = map[string]string{
	ModeReasoning: "Review recalled thoughts and produce 1-3 high-signal reasoning reflections. " +
		"Use <thought ...> tags with category='reflection'.",
	ModeSummarization: "Summarize recalled thoughts into actionable memory nuggets. " +
		"Use <thought ...> tags with category='summary'.",
	ModeContradictionDetection: "Detect contradictions or tension between recalled thoughts. " +
		"Emit corrected reflections with category='reflection'.",
	ModePlanning: "Convert recalled thoughts into next-step plans. " +
		"Use <thought ...> tags with category='plan'.",
}

// BuildReflectionPrompt renders the reflection prompt for a mode, query,
// and recalled-context block. It fails with ErrUnsupportedMode when the
// mode has no template.
func BuildReflectionPrompt(mode, query, recalledContext string) (string, error) {
	template, ok := ReflectionTemplates[mode]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}
	return template +
		"\n\nQuery:\n" + query +
		"\n\nRecalled Thoughts:\n" + recalledContext +
		"\n\nReturn only <thought ...> tags.", nil
}

// ContextBlock renders recalled thoughts as a bulleted context section,
// one line per thought. It returns the empty string for no thoughts so
// callers can skip the context wrapper entirely.
func ContextBlock(thoughts []*thought.Thought) string {
	if len(thoughts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range thoughts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- (%s/%s/%.2f) %s", t.SessionID, t.Category, t.Confidence, t.CleanedText)
	}
	return b.String()
}

// WrapUserPrompt appends the recalled-context block to a user prompt. An
// empty block leaves the prompt unchanged.
func WrapUserPrompt(userPrompt, contextBlock string) string {
	if contextBlock == "" {
		return userPrompt
	}
	return userPrompt +
		"\n\nRecalled memory context:\n" + contextBlock +
		"\nUse relevant context; add new thought tags for new reasoning."
}
