package util

import "strings"

// StripMarkup converts stored rich-text markup to plain text: <br> and
// block closers become newlines, every other tag is dropped, and the few
// entities the editor emits are decoded.
func StripMarkup(markup string) string {
	var sb strings.Builder
	sb.Grow(len(markup))
	inTag := false
	tagStart := 0
	for i := 0; i < len(markup); i++ {
		c := markup[i]
		switch {
		case c == '<':
			inTag = true
			tagStart = i + 1
		case c == '>' && inTag:
			inTag = false
			tag := strings.ToLower(strings.TrimSpace(markup[tagStart:i]))
			tag = strings.TrimSuffix(tag, "/")
			switch tag {
			case "br", "/p", "/div", "/li":
				sb.WriteByte('\n')
			}
		case !inTag:
			sb.WriteByte(c)
		}
	}
	text := sb.String()
	replacer := strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
	)
	return replacer.Replace(text)
}

// WordCount counts whitespace-separated words in plain text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Preview returns the first n runes of text, with "..." appended when
// truncated.
func Preview(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
