package reflection

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

var (
	thoughtBlockRe = regexp.MustCompile(`(?is)<thought\b([^>]*)>(.*?)</thought>`)
	attrRe         = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*?)"`)
)

// ParsedThought is one structured <thought> block extracted from model
// output.
type ParsedThought struct {
	// ID comes from the id attribute, or a fresh UUID when absent.
	ID string
	// Category comes from the category attribute, or the parse default.
	Category string
	// Confidence comes from the confidence attribute clamped to [0, 1],
	// or the parse default when missing or unparsable.
	Confidence float64
	// Content is the tag body with surrounding whitespace trimmed.
	Content string
}

// ParseDefaults supplies the fallback attribute values for ParseStructured.
// Zero values mean category "reflection" and confidence 0.9.
type ParseDefaults struct {
	Category   string
	Confidence float64
}

func (d ParseDefaults) applyDefaults() ParseDefaults {
	if d.Category == "" {
		d.Category = thought.CategoryReflection
	}
	if d.Confidence == 0 {
		d.Confidence = thought.DefaultConfidence
	}
	return d
}

// ParseStructured extracts <thought ...>content</thought> blocks from text.
// Matching is case-insensitive and spans newlines. Blocks whose trimmed
// body is empty are skipped. Malformed attributes degrade to the defaults;
// the function never fails, zero blocks is a data outcome.
func ParseStructured(text string, defaults ParseDefaults) []ParsedThought {
	defaults = defaults.applyDefaults()

	matches := thoughtBlockRe.FindAllStringSubmatch(text, -1)
	out := make([]ParsedThought, 0, len(matches))
	for _, m := range matches {
		content := strings.TrimSpace(m[2])
		if content == "" {
			continue
		}
		attrs := parseAttrs(m[1])

		id := attrs["id"]
		if id == "" {
			id = uuid.New().String()
		}
		category := strings.TrimSpace(attrs["category"])
		if category == "" {
			category = defaults.Category
		}
		confidence := defaults.Confidence
		if raw, ok := attrs["confidence"]; ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && !math.IsNaN(v) {
				confidence = v
			}
		}
		confidence = math.Min(1.0, math.Max(0.0, confidence))

		out = append(out, ParsedThought{
			ID:         id,
			Category:   category,
			Confidence: confidence,
			Content:    content,
		})
	}
	return out
}

// parseAttrs lowercases attribute names so ID="..." and id="..." are
// equivalent. Later duplicates win.
func parseAttrs(raw string) map[string]string {
	pairs := attrRe.FindAllStringSubmatch(raw, -1)
	attrs := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		attrs[strings.ToLower(pair[1])] = pair[2]
	}
	return attrs
}

// StripTags removes every <thought ...>...</thought> block from text and
// tidies the leftover whitespace, leaving only the visible reply.
func StripTags(text string) string {
	cleaned := thoughtBlockRe.ReplaceAllString(text, "\n")
	cleaned = trailingSpaceRe.ReplaceAllString(cleaned, "\n")
	cleaned = leadingSpaceRe.ReplaceAllString(cleaned, "\n")
	cleaned = blankRunRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	leadingSpaceRe  = regexp.MustCompile(`\n[ \t]+`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)
