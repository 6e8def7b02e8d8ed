package sink

import "SQLDumpPump/internal/models"

// Sink — приёмник одной таблицы: заголовок, затем строки
type Sink interface {
	WriteHeader(columns models.Header) error
	WriteRow(row models.Row) error
	Close() error
}

// Factory открывает приёмник для таблицы.
// Close фабрики освобождает общие ресурсы (соединение с БД), вызывается после всех Sink.Close.
type Factory interface {
	Open(table string) (Sink, error)
	Close() error
}
