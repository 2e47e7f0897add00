// Package framing recovers JSON object boundaries from request bodies that may
// carry several objects back to back with no delimiter ({...}{...}).
package framing

import "strings"

// Result holds the spans recovered from one body
type Result struct {
	// Objects are the complete, brace-balanced objects in input order.
	Objects []string
	// Trailing is an object that was opened but never closed.
	Trailing string
	// Discarded counts bytes that sat outside any object.
	Discarded int
}

// Normalize turns a raw body into text. Invalid UTF-8 is replaced with U+FFFD,
// NUL bytes and byte order marks are dropped.
func Normalize(raw []byte) string {
	text := strings.ToValidUTF8(string(raw), "\uFFFD")
	return strings.Map(func(r rune) rune {
		if r == 0 || r == '\uFEFF' {
			return -1
		}
		return r
	}, text)
}

// Split scans text once and returns every complete top-level object.
// Braces inside quoted strings are literal; a backslash inside a string
// escapes the byte that follows it.
func Split(text string) Result {
	var (
		res      Result
		depth    int
		inString bool
		escaped  bool
		start    = -1
	)

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if depth == 0 {
			if ch == '{' {
				start = i
				depth = 1
				continue
			}
			res.Discarded++
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				res.Objects = append(res.Objects, text[start:i+1])
				start = -1
			}
		}
	}

	if depth > 0 && start >= 0 {
		res.Trailing = text[start:]
	}
	return res
}
