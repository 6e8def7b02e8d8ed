package parser

import (
	"regexp"
	"strings"

	"SQLDumpPump/internal/models"
)

// SchemaExtractor разбирает полный текст CREATE TABLE в список колонок
type SchemaExtractor struct {
	d           Dialect
	constraints []*regexp.Regexp
}

// NewSchemaExtractor компилирует ключевые слова ограничений диалекта.
// Совпадение — без учёта регистра и только по границам слов.
func NewSchemaExtractor(d Dialect) *SchemaExtractor {
	se := &SchemaExtractor{d: d}
	for _, kw := range d.ConstraintKeywords {
		words := strings.Fields(kw)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		se.constraints = append(se.constraints, regexp.MustCompile(`(?i)\b`+strings.Join(words, `\s+`)+`\b`))
	}
	return se
}

// Extract возвращает схему таблицы. ok=false — имени нет или колонок не осталось.
func (se *SchemaExtractor) Extract(statement string) (models.TableSchema, bool) {
	name, ok := TableName(statement)
	if !ok {
		return models.TableSchema{}, false
	}
	cols := se.Columns(statement)
	if len(cols) == 0 {
		return models.TableSchema{}, false
	}
	return models.TableSchema{Name: name, Columns: cols}, true
}

// Columns достаёт имена колонок в порядке объявления, пропуская ограничения и индексы
func (se *SchemaExtractor) Columns(statement string) models.Header {
	text := se.d.stripComments(statement)

	open := strings.Index(text, "(")
	if open == -1 {
		return nil
	}
	closing := se.matchingParen(text, open)
	if closing == -1 {
		return nil
	}

	var columns models.Header
	for _, part := range se.splitTopLevel(text[open+1 : closing]) {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		name := strings.Trim(fields[0], "`\"")
		if name == "" || se.isConstraint(part) {
			continue
		}
		columns = append(columns, name)
	}
	return columns
}

func (se *SchemaExtractor) isConstraint(part string) bool {
	for _, re := range se.constraints {
		if re.MatchString(part) {
			return true
		}
	}
	return false
}

// splitTopLevel режет по разделителю вне вложенных скобок и литералов:
// DECIMAL(10,2) и DEFAULT 'a,b' остаются целыми
func (se *SchemaExtractor) splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case c == se.d.Escape && quote == se.d.Quote:
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case se.d.Quote, '`', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case se.d.Delimiter:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}

// matchingParen — индекс ')', закрывающей скобку в позиции open; -1, если её нет
func (se *SchemaExtractor) matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case c == se.d.Escape && quote == se.d.Quote:
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case se.d.Quote, '`', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
