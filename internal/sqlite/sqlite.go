package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"SQLDumpPump/internal/batch"
	"SQLDumpPump/internal/models"
	"SQLDumpPump/internal/sink"
	"SQLDumpPump/internal/transform"
)

// Store пишет все таблицы дампа в один файл SQLite, колонки — TEXT
type Store struct {
	db        *sql.DB
	path      string
	batchSize int
	logger    *zap.Logger
}

// Open создаёт каталог и файл базы; существующий файл пересоздаётся
func Open(dir, name string, batchSize int, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale %s: %w", path, err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	logger.Info("Открыта база SQLite", zap.String("path", path))
	return &Store{db: db, path: path, batchSize: batchSize, logger: logger}, nil
}

func (s *Store) Open(table string) (sink.Sink, error) {
	return &tableSink{store: s, table: table}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB — для чтения результата (тесты, отладка)
func (s *Store) DB() *sql.DB { return s.db }

type tableSink struct {
	store   *Store
	table   string
	columns models.Header
	insert  string
	batcher *batch.Batcher
}

func (t *tableSink) WriteHeader(columns models.Header) error {
	t.columns = columns
	if _, err := t.store.db.Exec("DROP TABLE IF EXISTS " + quoteIdent(t.table)); err != nil {
		return fmt.Errorf("drop table %s: %w", t.table, err)
	}
	if _, err := t.store.db.Exec(createTableQuery(t.table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", t.table, err)
	}
	t.insert = insertQuery(t.table, columns)
	t.batcher = batch.NewBatcher(t.table, t.store.batchSize, t.store.logger, t.send)
	return nil
}

func (t *tableSink) WriteRow(row models.Row) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("%w: got %d, want %d", transform.ErrColumnMismatch, len(row), len(t.columns))
	}
	return t.batcher.Add(row)
}

func (t *tableSink) Close() error {
	if t.batcher == nil {
		return nil
	}
	return t.batcher.Flush()
}

// send — одна транзакция на пачку
func (t *tableSink) send(rows []models.Row) error {
	tx, err := t.store.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(t.insert)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert %s: %w", t.table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]interface{}, len(row))
		for i, v := range row {
			if v == "" {
				args[i] = nil
				continue
			}
			args[i] = v
		}
		if _, err := stmt.Exec(args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s: %w", t.table, err)
		}
	}
	return tx.Commit()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createTableQuery(table string, columns models.Header) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}

func insertQuery(table string, columns models.Header) string {
	cols := make([]string, len(columns))
	for i, col := range columns {
		cols[i] = quoteIdent(col)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table),
		strings.Join(cols, ", "),
		strings.TrimRight(strings.Repeat("?,", len(cols)), ","),
	)
}
