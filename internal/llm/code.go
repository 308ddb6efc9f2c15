package llm

import "strings"

// ExtractCode returns the body of the first ``` fenced block in text.
// Text without a complete fence pair is returned unchanged.
func ExtractCode(text string) string {
	parts := strings.Split(text, "```")
	if len(parts) < 3 {
		return text
	}
	block := parts[1]
	// drop the language tag on the opening fence line, e.g. ```go
	if nl := strings.IndexByte(block, '\n'); nl >= 0 && !strings.ContainsAny(block[:nl], " \t") {
		block = block[nl+1:]
	}
	return strings.TrimSpace(block)
}
