// Package normalize produces the canonical form of extracted C++ code used
// for matching and stable diffing across re-extractions. The transform is a
// pure function: identical input always yields identical output.
package normalize

import "strings"

// Code strips comments, collapses whitespace runs, and normalizes line
// endings. String and character literals are preserved verbatim, including
// comment-looking sequences inside them.
func Code(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := stripComments(normalizeLineEndings(raw))

	lines := strings.Split(stripped, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		collapsed := collapseSpaces(line)
		if collapsed == "" {
			continue
		}
		out = append(out, collapsed)
	}

	return strings.Join(out, "\n")
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// stripComments removes // and /* */ comments. A block comment spanning lines
// is replaced by a single newline so surrounding statements stay on separate
// lines.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	const (
		stateCode = iota
		stateLineComment
		stateBlockComment
		stateString
		stateChar
	)

	state := stateCode
	escaped := false
	blockHadNewline := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch state {
		case stateCode:
			if c == '/' && i+1 < len(s) {
				switch s[i+1] {
				case '/':
					state = stateLineComment
					i++
					continue
				case '*':
					state = stateBlockComment
					blockHadNewline = false
					i++
					continue
				}
			}
			if c == '"' {
				state = stateString
			} else if c == '\'' {
				state = stateChar
			}
			b.WriteByte(c)
		case stateLineComment:
			if c == '\n' {
				state = stateCode
				b.WriteByte(c)
			}
		case stateBlockComment:
			if c == '\n' {
				blockHadNewline = true
			}
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				state = stateCode
				i++
				if blockHadNewline {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			}
		case stateString:
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				state = stateCode
			}
		case stateChar:
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '\'' {
				state = stateCode
			}
		}
	}

	return b.String()
}

func collapseSpaces(line string) string {
	fields := strings.Fields(line)
	return strings.Join(fields, " ")
}
