package parser

// Dialect описывает синтаксис дампа: разделители, кавычки, экранирование
// и набор ключевых слов ограничений. Передаётся явно вместо глобальных настроек.
type Dialect struct {
	Delimiter          byte
	Quote              byte
	Escape             byte
	Terminator         string
	ValuesMarker       string
	CommentPrefixes    []string
	ConstraintKeywords []string
}

// DefaultDialect — диалект mysqldump
func DefaultDialect() Dialect {
	return Dialect{
		Delimiter:          ',',
		Quote:              '\'',
		Escape:             '\\',
		Terminator:         ";",
		ValuesMarker:       " VALUES ",
		CommentPrefixes:    []string{"--", "/*"},
		ConstraintKeywords: []string{"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "INDEX", "KEY"},
	}
}
