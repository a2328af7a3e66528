// Package tagparse extracts inline /tagName[content] annotations from model
// output and produces a cleaned rendition of the surrounding text.
//
// The package supports:
//   - Lazy matching: shortest span to the next closing bracket (regex engine)
//   - Depth matching: linear scan that balances nested brackets
//   - Whitespace renormalization of the text left behind after tag removal
//   - Ordered extraction results keyed "{tag}_{index}" in document order
//
// # Engines
//
// The two engines intentionally disagree on nested brackets. Lazy matching
// truncates content at the first closing bracket:
//
//	Parse("X /thought[value [with nested] tokens] Y", "thought")
//	  → thought_0 = "value [with nested"
//
// Depth matching captures the full balanced span:
//
//	ParseLinear("X /thought[value [with nested] tokens] Y", "thought")
//	  → thought_0 = "value [with nested] tokens"
//
// Both behaviors are load-bearing: callers compare the engines against each
// other (see internal/bench and the ingestion fallback in internal/pipeline),
// so the divergence must not be "fixed".
//
// # Cleaning
//
// Clean and CleanLinear remove every matched tag, replace it with a single
// newline, and renormalize whitespace: horizontal whitespace touching a
// newline is dropped, runs of three or more newlines collapse to two, and the
// result is trimmed. Cleaning is idempotent.
//
// # Usage
//
//	thoughts, err := tagparse.Parse(reply, tagparse.DefaultTag)
//	if err != nil {
//	    // only fails on an empty tag name
//	}
//	for _, e := range thoughts {
//	    fmt.Printf("%s: %s\n", e.Key, e.Content)
//	}
//
//	cleaned, _ := tagparse.Clean(reply, tagparse.DefaultTag)
//
// All functions are pure: no I/O, no shared mutable state, safe for
// concurrent use. Compiled patterns are cached per tag name in an
// immutable-once-stored cache.
package tagparse
