package pump

import (
	"fmt"
	"sort"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
	"SQLDumpPump/internal/sink"
)

// Table — зарегистрированная таблица и её приёмник
type Table struct {
	Name    string
	Columns models.Header
	sink    sink.Sink

	RowsWritten   int
	RowsSkipped   int
	Mismatched    int
	FailedInserts int
	closed        bool
}

// Registry — таблицы по имени. Владеет приёмниками и закрывает их ровно один раз.
type Registry struct {
	factory sink.Factory
	logger  *zap.Logger
	tables  map[string]*Table
	retired []*Table
}

func NewRegistry(factory sink.Factory, logger *zap.Logger) *Registry {
	return &Registry{
		factory: factory,
		logger:  logger,
		tables:  make(map[string]*Table),
	}
}

// Lookup ищет таблицу по имени (с учётом регистра)
func (r *Registry) Lookup(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Register открывает приёмник и сразу пишет в него заголовок.
// Повторный CREATE того же имени закрывает прежний приёмник.
func (r *Registry) Register(schema models.TableSchema) (*Table, error) {
	if prev, ok := r.tables[schema.Name]; ok {
		r.logger.Warn("Повторный CREATE TABLE, прежний вывод будет перезаписан", zap.String("table", schema.Name))
		err := prev.close()
		delete(r.tables, schema.Name)
		r.retired = append(r.retired, prev)
		if err != nil {
			return nil, fmt.Errorf("close previous sink %s: %w", schema.Name, err)
		}
	}

	s, err := r.factory.Open(schema.Name)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", schema.Name, err)
	}
	t := &Table{Name: schema.Name, Columns: schema.Columns, sink: s}
	// Таблица регистрируется до записи заголовка, чтобы Close закрыл приёмник при ошибке
	r.tables[schema.Name] = t
	if err := s.WriteHeader(schema.Columns); err != nil {
		return nil, fmt.Errorf("write header %s: %w", schema.Name, err)
	}
	r.logger.Info("Таблица зарегистрирована", zap.String("table", schema.Name), zap.Strings("columns", schema.Columns))
	return t, nil
}

// Close закрывает все приёмники, затем фабрику. Ошибки собираются через multierr.
func (r *Registry) Close() error {
	var err error
	for _, name := range r.names() {
		err = multierr.Append(err, r.tables[name].close())
	}
	return multierr.Append(err, r.factory.Close())
}

// Tables — таблицы в алфавитном порядке, включая заменённые повторным CREATE
func (r *Registry) Tables() []*Table {
	out := append([]*Table(nil), r.retired...)
	for _, name := range r.names() {
		out = append(out, r.tables[name])
	}
	return out
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Table) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.sink.Close()
}
