package parser

import (
	"regexp"
	"strings"

	"SQLDumpPump/internal/models"
)

var tableNameRegex = regexp.MustCompile(`(?i)(?:CREATE\s+TABLE(?:\s+IF\s+NOT\s+EXISTS)?|INSERT\s+INTO)\s+[` + "`" + `"]?([^` + "`" + `"\s(]+)`)

// Classify определяет, начинает ли строка CREATE TABLE или INSERT INTO.
// Всё остальное — продолжение оператора или неинтересный текст.
func Classify(line string) models.StatementKind {
	upper := strings.ToUpper(strings.TrimSpace(line))
	switch {
	case strings.HasPrefix(upper, "CREATE TABLE"):
		return models.KindCreateTable
	case strings.HasPrefix(upper, "INSERT INTO"):
		return models.KindInsert
	default:
		return models.KindNone
	}
}

// TableName достаёт имя таблицы после CREATE TABLE / INSERT INTO без обрамляющих кавычек.
// Если имени нет — возвращает false, вызывающий просто пропускает оператор.
func TableName(text string) (string, bool) {
	m := tableNameRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsComment — строка начинается с одного из маркеров комментария
func (d Dialect) IsComment(line string) bool {
	for _, p := range d.CommentPrefixes {
		if p != "" && strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// ValuesClause возвращает текст после маркера VALUES.
// false, если маркера нет или текст не начинается с '('.
func (d Dialect) ValuesClause(statement string) (string, bool) {
	_, values, found := strings.Cut(statement, d.ValuesMarker)
	if !found || values == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.TrimSpace(values), "(") {
		return "", false
	}
	return values, true
}
