// Package text provides utilities for text processing.
// This package includes reusable functions for character counting and
// truncation that operate on Unicode characters rather than bytes.
package text

// CountRunes counts the number of Unicode characters (runes) in the given text.
// This function correctly handles multi-byte characters including Korean,
// Japanese, emoji, and other Unicode characters by counting runes instead of
// bytes, so truncation limits behave the same for every script.
//
// Examples:
//
//	CountRunes("hello")          // returns 5 (ASCII text)
//	CountRunes("안녕하세요")       // returns 5 (Korean text)
//	CountRunes("hello世界")       // returns 7 (mixed text)
//	CountRunes("Hello👋")         // returns 6 (text with emoji)
//	CountRunes("")               // returns 0 (empty string)
func CountRunes(text string) int {
	return len([]rune(text))
}

// TruncateRunes returns the first max Unicode characters of the given text.
// Text at or under the limit is returned unchanged. A non-positive max
// returns the empty string.
func TruncateRunes(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
