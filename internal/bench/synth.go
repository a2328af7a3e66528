package bench

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
)

// accuracySeed fixes the accuracy study's case generation so runs are
// reproducible across machines.
const accuracySeed = 20260228

// maxAccuracyTags bounds the annotations per synthetic accuracy case.
const maxAccuracyTags = 30

// textAlphabet deliberately omits brackets: synthetic payloads must not forge
// tag delimiters, so extraction accuracy measures the engines rather than the
// generator.
const textAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789 .,;:-_/\n\t"

func randomText(rng *rand.Rand, size int) string {
	b := make([]byte, size)
	for i := range b {
		b[i] = textAlphabet[rng.Intn(len(textAlphabet))]
	}
	return string(b)
}

// SyntheticOutput builds a deterministic model-output lookalike of roughly
// totalChars characters carrying tagCount annotations. The payload budget is
// split evenly across tags, with half-size prose runs between them.
func SyntheticOutput(totalChars, tagCount int, seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	if tagCount <= 0 {
		return randomText(rng, totalChars)
	}

	overheadPerTag := len("/thought[]\n")
	budget := max(0, totalChars-tagCount*overheadPerTag)
	contentPerTag := max(8, budget/tagCount)

	var b strings.Builder
	b.Grow(totalChars)
	b.WriteString("Synthetic run start.\n")
	for i := 0; i < tagCount; i++ {
		b.WriteString(randomText(rng, max(4, contentPerTag/2)))
		content := strings.ReplaceAll(randomText(rng, contentPerTag), "]", "")
		b.WriteString("\n/thought[")
		b.WriteString(content)
		b.WriteString("]\n")
	}
	b.WriteString("Synthetic run end.")
	return b.String()
}

// EngineAccuracy is the accuracy outcome for one parse engine.
type EngineAccuracy struct {
	// ExactCasePct is the share of cases where the extracted map equals the
	// expected map entirely.
	ExactCasePct float64 `json:"exact_case_accuracy_pct"`

	// PerTagPct is the share of individual expected tags recovered with the
	// right key and content.
	PerTagPct float64 `json:"per_tag_accuracy_pct"`
}

// Accuracy aggregates the synthetic extraction study for both engines.
type Accuracy struct {
	Cases             int            `json:"cases"`
	TotalExpectedTags int            `json:"total_expected_tags"`
	Lazy              EngineAccuracy `json:"lazy"`
	Linear            EngineAccuracy `json:"linear"`
}

// AccuracyStudy generates seeded synthetic cases with 0 to 30 annotations of
// 1 to 100 payload characters each and scores both engines against the known
// expected extractions.
func AccuracyStudy(cases int) Accuracy {
	if cases < 1 {
		cases = 1
	}
	rng := rand.New(rand.NewSource(accuracySeed))

	var (
		totalExpected    int
		lazyExactCases   int
		lazyTagMatches   int
		linearExactCases int
		linearTagMatches int
	)

	for c := 0; c < cases; c++ {
		tagCount := rng.Intn(maxAccuracyTags + 1)
		var b strings.Builder
		expected := make(tagparse.ThoughtMap, 0, tagCount)
		for i := 0; i < tagCount; i++ {
			b.WriteString(randomText(rng, rng.Intn(21)))
			content := strings.ReplaceAll(randomText(rng, 1+rng.Intn(100)), "]", "")
			b.WriteString("/thought[")
			b.WriteString(content)
			b.WriteString("]")
			expected = append(expected, tagparse.Entry{
				Key:     fmt.Sprintf("thought_%d", i),
				Content: strings.TrimSpace(content),
			})
		}
		b.WriteString(randomText(rng, rng.Intn(21)))
		text := b.String()

		// DefaultTag never fails validation.
		lazy, _ := tagparse.Parse(text, tagparse.DefaultTag)
		linear, _ := tagparse.ParseLinear(text, tagparse.DefaultTag)

		if lazy.Equal(expected) {
			lazyExactCases++
		}
		if linear.Equal(expected) {
			linearExactCases++
		}
		totalExpected += expected.Len()
		for _, want := range expected {
			if got, ok := lazy.Get(want.Key); ok && got == want.Content {
				lazyTagMatches++
			}
			if got, ok := linear.Get(want.Key); ok && got == want.Content {
				linearTagMatches++
			}
		}
	}

	tagPct := func(matched int) float64 {
		if totalExpected == 0 {
			return 100.0
		}
		return float64(matched) / float64(totalExpected) * 100.0
	}
	casePct := func(matched int) float64 {
		return float64(matched) / float64(cases) * 100.0
	}

	return Accuracy{
		Cases:             cases,
		TotalExpectedTags: totalExpected,
		Lazy: EngineAccuracy{
			ExactCasePct: casePct(lazyExactCases),
			PerTagPct:    tagPct(lazyTagMatches),
		},
		Linear: EngineAccuracy{
			ExactCasePct: casePct(linearExactCases),
			PerTagPct:    tagPct(linearTagMatches),
		},
	}
}
