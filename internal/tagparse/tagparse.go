package tagparse

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultTag is the tag name used across the project when the caller does not
// supply one.
const DefaultTag = "thought"

// ErrInvalidTag indicates an empty or whitespace-only tag name. It is the only
// error any function in this package returns.
var ErrInvalidTag = errors.New("tag name must be a non-empty string")

// Result bundles the two views ParseAndClean produces from one input.
type Result struct {
	CleanedText string     `json:"cleaned_text"`
	Thoughts    ThoughtMap `json:"thoughts"`
}

// tagPatterns holds the compiled patterns for one tag name.
type tagPatterns struct {
	capture *regexp.Regexp // marker + shortest content run + closing bracket
	strip   *regexp.Regexp // same span plus surrounding whitespace
}

// patternCache maps tag name to *tagPatterns. Entries are immutable once
// stored; concurrent first builds may compile twice but agree on the result.
var patternCache sync.Map

var (
	horizBeforeNewline = regexp.MustCompile(`[ \t]+\n`)
	horizAfterNewline  = regexp.MustCompile(`\n[ \t]+`)
	newlineRun         = regexp.MustCompile(`\n{3,}`)
)

// match is the span an engine found: offsets cover marker through closing
// bracket, content is the untrimmed text between them.
type match struct {
	start   int
	end     int
	content string
}

// Parse extracts every tag occurrence using lazy matching and returns the
// trimmed contents keyed "{tag}_{i}" in document order. Content stops at the
// first closing bracket, so nested brackets truncate (see ParseLinear for
// balanced capture).
func Parse(text, tag string) (ThoughtMap, error) {
	pats, err := patternsFor(tag)
	if err != nil {
		return nil, err
	}
	var thoughts ThoughtMap
	for i, m := range pats.capture.FindAllStringSubmatch(text, -1) {
		thoughts = append(thoughts, Entry{
			Key:     fmt.Sprintf("%s_%d", tag, i),
			Content: strings.TrimSpace(m[1]),
		})
	}
	return thoughts, nil
}

// ParseLinear extracts every tag occurrence using the depth engine, capturing
// nested brackets as content.
func ParseLinear(text, tag string) (ThoughtMap, error) {
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	var thoughts ThoughtMap
	for i, m := range linearMatches(text, tag) {
		thoughts = append(thoughts, Entry{
			Key:     fmt.Sprintf("%s_%d", tag, i),
			Content: strings.TrimSpace(m.content),
		})
	}
	return thoughts, nil
}

// Clean removes every lazy match together with its surrounding whitespace,
// splices a single newline into each gap, and renormalizes the result. With
// zero matches the input still passes through normalization.
func Clean(text, tag string) (string, error) {
	pats, err := patternsFor(tag)
	if err != nil {
		return "", err
	}
	return normalize(pats.strip.ReplaceAllString(text, "\n")), nil
}

// CleanLinear removes every depth-engine match by splicing the text between
// consecutive match boundaries with a single newline, then renormalizes. With
// zero matches only newline collapsing and trimming apply.
func CleanLinear(text, tag string) (string, error) {
	if err := validateTag(tag); err != nil {
		return "", err
	}
	matches := linearMatches(text, tag)
	if len(matches) == 0 {
		return collapseAndTrim(text), nil
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range matches {
		b.WriteString(text[prev:m.start])
		b.WriteByte('\n')
		prev = m.end
	}
	b.WriteString(text[prev:])
	return normalize(b.String()), nil
}

// ParseAndClean runs parse and clean with the same engine and returns both
// views. linear selects the depth engine.
func ParseAndClean(text, tag string, linear bool) (Result, error) {
	if linear {
		thoughts, err := ParseLinear(text, tag)
		if err != nil {
			return Result{}, err
		}
		cleaned, err := CleanLinear(text, tag)
		if err != nil {
			return Result{}, err
		}
		return Result{CleanedText: cleaned, Thoughts: thoughts}, nil
	}
	thoughts, err := Parse(text, tag)
	if err != nil {
		return Result{}, err
	}
	cleaned, err := Clean(text, tag)
	if err != nil {
		return Result{}, err
	}
	return Result{CleanedText: cleaned, Thoughts: thoughts}, nil
}

// validateTag rejects empty and whitespace-only tag names before any scanning.
func validateTag(tag string) error {
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("%w: got %q", ErrInvalidTag, tag)
	}
	return nil
}

// patternsFor returns the compiled patterns for tag, building them on first
// use. The tag is matched verbatim: QuoteMeta escapes regex metacharacters.
func patternsFor(tag string) (*tagPatterns, error) {
	if err := validateTag(tag); err != nil {
		return nil, err
	}
	if cached, ok := patternCache.Load(tag); ok {
		return cached.(*tagPatterns), nil
	}
	quoted := regexp.QuoteMeta(tag)
	pats := &tagPatterns{
		capture: regexp.MustCompile(`(?s)/` + quoted + `\[(.*?)]`),
		strip:   regexp.MustCompile(`(?s)\s*/` + quoted + `\[.*?]\s*`),
	}
	actual, _ := patternCache.LoadOrStore(tag, pats)
	return actual.(*tagPatterns), nil
}

// linearMatches scans text for "/tag[" markers and closes each at the bracket
// that balances its nesting depth. An unclosed marker yields no match and the
// scan resumes one byte past the marker start, which keeps adjacent malformed
// markers visible. Byte indexing is safe: the delimiters are ASCII and UTF-8
// continuation bytes never collide with them.
func linearMatches(text, tag string) []match {
	marker := "/" + tag + "["
	var matches []match
	scan := 0
	for {
		rel := strings.Index(text[scan:], marker)
		if rel < 0 {
			return matches
		}
		start := scan + rel
		cursor := start + len(marker)
		depth := 1
		for cursor < len(text) {
			switch text[cursor] {
			case '[':
				depth++
			case ']':
				depth--
			}
			if depth == 0 {
				break
			}
			cursor++
		}
		if depth != 0 {
			scan = start + 1
			continue
		}
		matches = append(matches, match{
			start:   start,
			end:     cursor + 1,
			content: text[start+len(marker) : cursor],
		})
		scan = cursor + 1
	}
}

// normalize applies the full whitespace cleanup: horizontal whitespace
// touching a newline is dropped, newline runs collapse to two, and the whole
// result is trimmed. Idempotent.
func normalize(s string) string {
	s = horizBeforeNewline.ReplaceAllString(s, "\n")
	s = horizAfterNewline.ReplaceAllString(s, "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// collapseAndTrim is the reduced cleanup used when the depth engine found
// nothing to remove.
func collapseAndTrim(s string) string {
	return strings.TrimSpace(newlineRun.ReplaceAllString(s, "\n\n"))
}
