package utils

// Token estimates use the 1 token ~= 4 characters heuristic. Export payloads
// are sized for agent context windows, so a rough figure is enough.

const charsPerToken = 4

// CountTokens estimates the number of tokens in text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / charsPerToken
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly fit within limit tokens.
// It reports whether anything was cut. A limit <= 0 means no limit.
func TruncateToTokenLimit(text string, limit int) (string, bool) {
	if limit <= 0 {
		return text, false
	}
	runes := []rune(text)
	charLimit := limit * charsPerToken
	if charLimit >= len(runes) {
		return text, false
	}
	return string(runes[:charLimit]), true
}
