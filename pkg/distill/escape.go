package distill

import (
	"strconv"
	"strings"
)

// EscapeHTML converts text into HTML that keeps word breaks. Runs of blanks
// alternate between a space and &nbsp; so they neither collapse nor stop wrapping.
// Newlines become the literal text "<br/>", and runes from 160 up are written as
// numeric character references.
func EscapeHTML(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	lastBlank := false
	for _, c := range s {
		if c == ' ' {
			if lastBlank {
				sb.WriteString("&nbsp;")
			} else {
				sb.WriteByte(' ')
			}
			lastBlank = !lastBlank
			continue
		}
		lastBlank = false

		switch {
		case c == '"':
			sb.WriteString("&quot;")
		case c == '&':
			sb.WriteString("&amp;")
		case c == '<':
			sb.WriteString("&lt;")
		case c == '>':
			sb.WriteString("&gt;")
		case c == '\n':
			sb.WriteString("&lt;br/&gt;")
		case c < 160:
			sb.WriteRune(c)
		default:
			sb.WriteString("&#")
			sb.WriteString(strconv.Itoa(int(c)))
			sb.WriteByte(';')
		}
	}
	return sb.String()
}

// UnescapeHTML reverses EscapeHTML.
func UnescapeHTML(s string) string {
	var sb strings.Builder
	for len(s) > 0 {
		if s[0] != '&' {
			sb.WriteByte(s[0])
			s = s[1:]
			continue
		}
		end := strings.IndexByte(s, ';')
		if end < 0 {
			sb.WriteString(s)
			break
		}
		ent := s[1:end]
		switch {
		case ent == "quot":
			sb.WriteByte('"')
		case ent == "amp":
			sb.WriteByte('&')
		case ent == "lt":
			if strings.HasPrefix(s, "&lt;br/&gt;") {
				sb.WriteByte('\n')
				s = s[len("&lt;br/&gt;"):]
				continue
			}
			sb.WriteByte('<')
		case ent == "gt":
			sb.WriteByte('>')
		case ent == "nbsp":
			sb.WriteByte(' ')
		case strings.HasPrefix(ent, "#"):
			n, err := strconv.Atoi(ent[1:])
			if err != nil {
				sb.WriteString(s[:end+1])
			} else {
				sb.WriteRune(rune(n))
			}
		default:
			sb.WriteString(s[:end+1])
		}
		s = s[end+1:]
	}
	return sb.String()
}

// ScriptString prepares text for a single-quoted JavaScript string holding HTML.
func ScriptString(s string) string {
	s = strings.ReplaceAll(s, "'", `\'`)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return EscapeHTML(s)
}
