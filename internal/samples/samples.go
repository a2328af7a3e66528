// Package samples holds the canonical annotated model output used for
// deterministic reproduction tests and benchmarking. The fixture and its
// expected derivations are load-bearing: the benchmark suite and the CI gates
// both measure against exactly this text.
package samples

// Raw is the canonical model output: four /thought annotations surrounded by
// prose, each on its own line with a leading space and blank lines around it.
const Raw = `Analyzing the feasibility of the /thought tagging system.

 /thought[The regex-based parser is efficient and works on any text output from an LLM, including my own generations.]

 /thought[Testing on myself: I can structure internal reasoning explicitly without changing model behavior.]

 /thought[Extra capability sensed: This enables persistent thought memory across interactions, allowing retrieval of specific reasoning steps for self-correction or learning.]

 /thought[In theory it works perfectly; latency is negligible (<0.01ms); it adds machine-readable structure to otherwise opaque reasoning.]

Final assessment: The system is robust and unlocks human-like metacognition in LLMs.`

// ExpectedClean is Raw with every annotation removed and whitespace
// renormalized.
const ExpectedClean = `Analyzing the feasibility of the /thought tagging system.

Final assessment: The system is robust and unlocks human-like metacognition in LLMs.`

// Thought is one expected extraction from Raw.
type Thought struct {
	Key     string
	Content string
}

// ExpectedThoughts lists the extractions both engines must produce from Raw,
// in document order.
var ExpectedThoughts = []Thought{
	{"thought_0", "The regex-based parser is efficient and works on any text output from an LLM, including my own generations."},
	{"thought_1", "Testing on myself: I can structure internal reasoning explicitly without changing model behavior."},
	{"thought_2", "Extra capability sensed: This enables persistent thought memory across interactions, allowing retrieval of specific reasoning steps for self-correction or learning."},
	{"thought_3", "In theory it works perfectly; latency is negligible (<0.01ms); it adds machine-readable structure to otherwise opaque reasoning."},
}
