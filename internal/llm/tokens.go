package llm

import "strings"

// EstimateTokens is the minimal word/char-ratio token counter kept for
// LLM-driven analyst paths only (spec.md §9 design note; SPEC_FULL.md
// §12 grounds it on the original's async_token_optimizer.py heuristic
// rather than a full tokenizer). It is deliberately not wired to any
// article-cap or compression logic — those are the two competing,
// unresolved flags spec.md §9 says not to implement.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// ~0.75 words per token (about 1.33 tokens per word) is the commonly-cited ratio for English
	// text under BPE tokenizers; chars/4 is the fallback for
	// non-whitespace-delimited content.
	byWords := int(float64(words) / 0.75)
	byChars := len(text) / 4
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// EstimateConversationTokens sums EstimateTokens over a message history.
func EstimateConversationTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m.Content)
	}
	return total
}
