package reflection

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructuredFullAttributes(t *testing.T) {
	text := `<thought id="th-1" category="fact" confidence="0.75">disk was full</thought>`

	got := ParseStructured(text, ParseDefaults{})
	require.Len(t, got, 1)
	assert.Equal(t, "th-1", got[0].ID)
	assert.Equal(t, "fact", got[0].Category)
	assert.Equal(t, 0.75, got[0].Confidence)
	assert.Equal(t, "disk was full", got[0].Content)
}

func TestParseStructuredAppliesDefaults(t *testing.T) {
	got := ParseStructured("<thought>bare block</thought>", ParseDefaults{})
	require.Len(t, got, 1)

	_, err := uuid.Parse(got[0].ID)
	assert.NoError(t, err, "missing id gets a fresh UUID")
	assert.Equal(t, "reflection", got[0].Category)
	assert.Equal(t, 0.9, got[0].Confidence)
}

func TestParseStructuredCustomDefaults(t *testing.T) {
	got := ParseStructured("<thought>next step</thought>", ParseDefaults{Category: "plan", Confidence: 0.7})
	require.Len(t, got, 1)
	assert.Equal(t, "plan", got[0].Category)
	assert.Equal(t, 0.7, got[0].Confidence)
}

func TestParseStructuredSkipsEmptyContent(t *testing.T) {
	text := `<thought id="a"></thought><thought id="b">   </thought><thought id="c">kept</thought>`

	got := ParseStructured(text, ParseDefaults{})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestParseStructuredCaseInsensitive(t *testing.T) {
	text := `<THOUGHT ID="up-1" CATEGORY="fact" CONFIDENCE="0.5">shouted</THOUGHT>`

	got := ParseStructured(text, ParseDefaults{})
	require.Len(t, got, 1)
	assert.Equal(t, "up-1", got[0].ID)
	assert.Equal(t, "fact", got[0].Category)
	assert.Equal(t, 0.5, got[0].Confidence)
}

func TestParseStructuredSpansNewlines(t *testing.T) {
	text := "<thought id=\"ml-1\">first line\nsecond line</thought>"

	got := ParseStructured(text, ParseDefaults{})
	require.Len(t, got, 1)
	assert.Equal(t, "first line\nsecond line", got[0].Content)
}

func TestParseStructuredConfidenceHandling(t *testing.T) {
	tests := []struct {
		name string
		attr string
		want float64
	}{
		{"unparsable falls back", `confidence="high"`, 0.9},
		{"nan falls back", `confidence="nan"`, 0.9},
		{"clamped above", `confidence="1.7"`, 1.0},
		{"clamped below", `confidence="-0.3"`, 0.0},
		{"whitespace tolerated", `confidence=" 0.42 "`, 0.42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStructured(`<thought `+tt.attr+`>content</thought>`, ParseDefaults{})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Confidence)
		})
	}
}

func TestParseStructuredBlankCategoryFallsBack(t *testing.T) {
	got := ParseStructured(`<thought category="   ">content</thought>`, ParseDefaults{})
	require.Len(t, got, 1)
	assert.Equal(t, "reflection", got[0].Category)
}

func TestParseStructuredNoBlocks(t *testing.T) {
	assert.Empty(t, ParseStructured("just prose, no tags at all", ParseDefaults{}))
	assert.Empty(t, ParseStructured("", ParseDefaults{}))
}

func TestParseStructuredPreservesOrder(t *testing.T) {
	text := `<thought id="one">first</thought> between <thought id="two">second</thought>`

	got := ParseStructured(text, ParseDefaults{})
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].ID)
	assert.Equal(t, "two", got[1].ID)
}

func TestStripTags(t *testing.T) {
	text := "<thought id=\"th-1\" category=\"reasoning\" confidence=\"0.95\">validate context</thought>\nFinal answer: accepted."
	assert.Equal(t, "Final answer: accepted.", StripTags(text))
}

func TestStripTagsTidiesWhitespace(t *testing.T) {
	text := "Intro   \n<thought>a</thought>\n\n\n<thought>b</thought>   outro"
	assert.Equal(t, "Intro\n\noutro", StripTags(text))
}

func TestStripTagsPlainTextUnchanged(t *testing.T) {
	assert.Equal(t, "no tags here", StripTags("no tags here"))
}
