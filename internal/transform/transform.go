package transform

import (
	"errors"
	"fmt"
	"strings"

	"SQLDumpPump/internal/models"
)

// ErrColumnMismatch — число полей строки не совпадает с числом колонок таблицы
var ErrColumnMismatch = errors.New("row field count does not match column count")

// Policy — что делать со строкой, длина которой не совпала с заголовком
type Policy string

const (
	// Permissive — строка пишется как есть
	Permissive Policy = "permissive"
	// Pad — короткие строки добиваются пустыми полями, длинные обрезаются
	Pad Policy = "pad"
	// Strict — строка отбрасывается с ошибкой
	Strict Policy = "strict"
)

// ParsePolicy разбирает значение из конфига, пустая строка = Permissive
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Permissive, nil
	case Permissive, Pad, Strict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown row policy %q", s)
	}
}

// Align приводит строку к колонкам таблицы согласно политике.
// mismatch=true, если длины различались (даже если строка всё равно принята).
func Align(row models.Row, columns models.Header, policy Policy) (aligned models.Row, mismatch bool, err error) {
	if len(row) == len(columns) {
		return row, false, nil
	}
	switch policy {
	case Pad:
		out := make(models.Row, len(columns))
		copy(out, row)
		return out, true, nil
	case Strict:
		return nil, true, fmt.Errorf("%w: got %d, want %d", ErrColumnMismatch, len(row), len(columns))
	default:
		return row, true, nil
	}
}
