package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

func TestSystemPromptsEmbedTagGuidance(t *testing.T) {
	assert.Contains(t, SystemPromptGeneral, `<thought id=`)
	assert.Contains(t, SystemPromptGeneral, "concise final answer")
	assert.Contains(t, SystemPromptAgent, "reflect()")
	assert.Contains(t, SystemPromptAgent, TagGuidance)
}

func TestApplySystemEnforcement(t *testing.T) {
	base := "You are a test assistant."

	xml := ApplySystemEnforcement(base, EnforcementXML)
	assert.Contains(t, xml, TagGuidance)
	assert.Contains(t, xml, "Use only XML <thought ...> tags")

	slash := ApplySystemEnforcement(base, EnforcementSlash)
	assert.Contains(t, slash, "/thought[...]")
	assert.NotContains(t, slash, `<thought id=`)

	auto := ApplySystemEnforcement(base, EnforcementAuto)
	assert.Contains(t, auto, "Prefer XML <thought> tags")
	assert.Contains(t, auto, "acceptable fallback")
}

func TestApplySystemEnforcementUnknownStyleActsAsAuto(t *testing.T) {
	base := "base"
	assert.Equal(t, ApplySystemEnforcement(base, EnforcementAuto), ApplySystemEnforcement(base, "bracket"))
	assert.Equal(t, ApplySystemEnforcement(base, EnforcementAuto), ApplySystemEnforcement(base, ""))
}

func TestReflectionTemplatesCoverAllModes(t *testing.T) {
	modes := []string{ModeReasoning, ModeSummarization, ModeContradictionDetection, ModePlanning}
	for _, mode := range modes {
		template, ok := ReflectionTemplates[mode]
		require.True(t, ok, "missing template for mode %q", mode)
		assert.Contains(t, template, "<thought ...>")
	}
	assert.Len(t, ReflectionTemplates, len(modes))
}

func TestBuildReflectionPromptLayout(t *testing.T) {
	got, err := BuildReflectionPrompt(ModeReasoning, "why did the job fail", "- (s1/fact/0.90) disk was full")
	require.NoError(t, err)

	want := ReflectionTemplates[ModeReasoning] +
		"\n\nQuery:\nwhy did the job fail" +
		"\n\nRecalled Thoughts:\n- (s1/fact/0.90) disk was full" +
		"\n\nReturn only <thought ...> tags."
	assert.Equal(t, want, got)
}

func TestBuildReflectionPromptUnknownMode(t *testing.T) {
	_, err := BuildReflectionPrompt("daydreaming", "q", "- a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.ErrorContains(t, err, "daydreaming")
}

func TestContextBlock(t *testing.T) {
	assert.Empty(t, ContextBlock(nil))

	thoughts := []*thought.Thought{
		{SessionID: "s1", Category: "fact", Confidence: 0.92, CleanedText: "rollback plan exists"},
		{SessionID: "s2", Category: "reasoning", Confidence: 0.8, CleanedText: "retry with backoff"},
	}
	want := "- (s1/fact/0.92) rollback plan exists\n" +
		"- (s2/reasoning/0.80) retry with backoff"
	assert.Equal(t, want, ContextBlock(thoughts))
}

func TestWrapUserPrompt(t *testing.T) {
	assert.Equal(t, "plain question", WrapUserPrompt("plain question", ""))

	wrapped := WrapUserPrompt("plain question", "- (s1/fact/0.90) context line")
	assert.Contains(t, wrapped, "plain question\n\nRecalled memory context:\n- (s1/fact/0.90) context line")
	assert.Contains(t, wrapped, "add new thought tags for new reasoning")
}
