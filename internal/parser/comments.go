package parser

import "strings"

// StripLineComment отрезает хвостовой "-- комментарий" вне кавычек
func (d Dialect) StripLineComment(line string) string {
	inQuote, escaped := false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case inQuote && c == d.Escape:
			escaped = true
		case c == d.Quote:
			inQuote = !inQuote
		case !inQuote && isLineComment(line, i):
			return strings.TrimSpace(line[:i])
		}
	}
	return line
}

// stripComments убирает /* ... */ и "-- ..." до конца строки вне строковых литералов.
// Идентификаторы в `...` и "..." тоже считаются закавыченными.
func (d Dialect) stripComments(text string) string {
	var (
		out   strings.Builder
		quote byte // открытая кавычка или 0
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			out.WriteByte(c)
			switch {
			case c == d.Escape && quote == d.Quote && i+1 < len(text):
				i++
				out.WriteByte(text[i])
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case c == d.Quote || c == '`' || c == '"':
			quote = c
			out.WriteByte(c)
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end == -1 {
				return out.String()
			}
			out.WriteByte(' ')
			i += 2 + end + 1
		case isLineComment(text, i):
			end := strings.IndexByte(text[i:], '\n')
			if end == -1 {
				return out.String()
			}
			i += end - 1
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// isLineComment — "--" с пробелом, табом, переводом строки или концом текста после него
func isLineComment(s string, i int) bool {
	if !strings.HasPrefix(s[i:], "--") {
		return false
	}
	if i+2 == len(s) {
		return true
	}
	switch s[i+2] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
