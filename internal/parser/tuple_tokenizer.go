package parser

import (
	"errors"
	"fmt"
	"strings"

	"SQLDumpPump/internal/models"
)

var (
	ErrUnterminatedQuote = errors.New("unterminated quoted field")
	ErrDanglingEscape    = errors.New("escape character at end of data")
)

// SyntaxError — ошибка разбора VALUES с позицией (байтовое смещение)
type SyntaxError struct {
	Offset int
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("values clause at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// field — одно поле после сканирования и признак того, что оно было в кавычках
type field struct {
	text   string
	quoted bool
}

type scanState int

const (
	stateStartField scanState = iota
	stateInField
	stateEscapedChar
	stateInQuoted
	stateEscapeInQuoted
)

// Tokenizer раскладывает VALUES-часть INSERT на строки
type Tokenizer struct {
	d Dialect
}

func NewTokenizer(d Dialect) *Tokenizer {
	return &Tokenizer{d: d}
}

// Rows декодирует VALUES-часть в строки в порядке следования кортежей.
// При ошибке возвращает nil: частичные строки из битого оператора не используются.
func (t *Tokenizer) Rows(values string) ([]models.Row, error) {
	fields, err := t.scanFields(strings.TrimSpace(values))
	if err != nil {
		return nil, err
	}

	var (
		tupleEnd  = ")" + t.d.Terminator
		tupleNext = ")" + string(t.d.Delimiter)
		cutset    = ")" + t.d.Terminator + string(t.d.Delimiter)

		rows       []models.Row
		pending    models.Row
		lastQuoted bool
	)
	emit := func() {
		rows = append(rows, pending)
		pending = nil
	}
	push := func(text string, quoted bool) {
		pending = append(pending, t.normalize(text, quoted))
		lastQuoted = quoted
	}

	for _, f := range fields {
		text := f.text
		if text == "" || (!f.quoted && text == "NULL") {
			push("", false)
			continue
		}

		// Начало нового кортежа: закрываем предыдущий, если он завершился ')'
		if text[0] == '(' {
			if n := len(pending); n > 0 && strings.HasSuffix(pending[n-1], ")") {
				pending[n-1] = t.normalize(strings.TrimSuffix(pending[n-1], ")"), lastQuoted)
				emit()
			}
			if len(pending) == 0 {
				text = text[1:]
			}
		}

		// Конец кортежа: ")" + терминатор или ")" + разделитель
		if strings.HasSuffix(text, tupleEnd) || strings.HasSuffix(text, tupleNext) {
			push(strings.TrimRight(text, cutset), f.quoted)
			emit()
			continue
		}

		push(text, f.quoted)
	}

	if n := len(pending); n > 0 {
		if strings.HasSuffix(pending[n-1], ")") {
			pending[n-1] = t.normalize(strings.TrimSuffix(pending[n-1], ")"), lastQuoted)
		}
		emit()
	}
	return rows, nil
}

// normalize превращает голый NULL, открытый после снятия скобок, в пустое поле.
// 'NULL' в кавычках остаётся текстом.
func (t *Tokenizer) normalize(text string, quoted bool) string {
	if !quoted && text == "NULL" {
		return ""
	}
	return text
}

// scanFields — строгий CSV-подобный сканер: разделитель, одинарная кавычка,
// обратный слэш как экранирование, удвоение кавычек не поддерживается.
func (t *Tokenizer) scanFields(s string) ([]field, error) {
	if s == "" {
		return nil, nil
	}
	var (
		fields []field
		buf    strings.Builder
		quoted bool
		state  = stateStartField
		opened int
	)
	save := func() {
		fields = append(fields, field{text: buf.String(), quoted: quoted})
		buf.Reset()
		quoted = false
		state = stateStartField
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateStartField:
			switch c {
			case t.d.Quote:
				quoted = true
				opened = i
				state = stateInQuoted
			case t.d.Escape:
				state = stateEscapedChar
			case t.d.Delimiter:
				save()
			case ' ', '\t':
				// пробелы перед полем не значимы: "(1,'a'), (2,'b')" после склейки строк
			default:
				buf.WriteByte(c)
				state = stateInField
			}
		case stateInField:
			switch {
			case c == t.d.Delimiter:
				save()
			case c == t.d.Escape:
				state = stateEscapedChar
			case c == t.d.Quote && buf.Len() == 1 && buf.String() == "(":
				// ('a,b', ...) — кавычка сразу после открывающей скобки кортежа
				quoted = true
				opened = i
				state = stateInQuoted
			default:
				buf.WriteByte(c)
			}
		case stateEscapedChar:
			buf.WriteByte(c)
			state = stateInField
		case stateInQuoted:
			switch c {
			case t.d.Escape:
				state = stateEscapeInQuoted
			case t.d.Quote:
				state = stateInField
			default:
				buf.WriteByte(c)
			}
		case stateEscapeInQuoted:
			buf.WriteByte(c)
			state = stateInQuoted
		}
	}

	switch state {
	case stateInQuoted, stateEscapeInQuoted:
		return nil, &SyntaxError{Offset: opened, Err: ErrUnterminatedQuote}
	case stateEscapedChar:
		return nil, &SyntaxError{Offset: len(s) - 1, Err: ErrDanglingEscape}
	}
	save()
	return fields, nil
}
