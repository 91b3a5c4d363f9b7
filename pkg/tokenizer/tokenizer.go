// Package tokenizer estimates token counts for logging ingest volume.
// Exact counts would need a model-specific tokenizer; an estimate is
// enough here.
package tokenizer

import "strings"

// CountTokens roughly estimates the token cost of a text from its word
// count. English prose averages about four tokens per three words.
func CountTokens(text string) int {
	return max(len(strings.Fields(text))*4/3, 1)
}
