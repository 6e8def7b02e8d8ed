package models

// StatementKind — тип SQL-оператора, который собирает pump
type StatementKind int

const (
	KindNone StatementKind = iota
	KindCreateTable
	KindInsert
)

func (k StatementKind) String() string {
	switch k {
	case KindCreateTable:
		return "CreateTable"
	case KindInsert:
		return "Insert"
	default:
		return "None"
	}
}

// Header — имена колонок таблицы в порядке объявления
type Header []string

// Row — одна строка значений из VALUES.
// Пустая строка означает SQL NULL.
type Row []string

// TableSchema — результат разбора CREATE TABLE
type TableSchema struct {
	Name    string
	Columns Header
}
