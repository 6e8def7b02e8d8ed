package clickhouseclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"SQLDumpPump/internal/batch"
	"SQLDumpPump/internal/config"
	"SQLDumpPump/internal/models"
	"SQLDumpPump/internal/sink"
	"SQLDumpPump/internal/transform"
)

// Client — приёмник таблиц дампа в ClickHouse.
// Каждая таблица создаётся как MergeTree с колонками Nullable(String).
type Client struct {
	conn        clickhouse.Conn
	TablePrefix string
	BatchSize   int
	Logger      *zap.Logger
}

// New создает клиента ClickHouse
func New(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	protocol := clickhouse.Native
	if cfg.Protocol == "http" {
		protocol = clickhouse.HTTP
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Address},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		Protocol:    protocol,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{
		conn:        conn,
		TablePrefix: cfg.TablePrefix,
		BatchSize:   cfg.BatchSize,
		Logger:      logger,
	}, nil
}

// Open возвращает приёмник таблицы; таблица создаётся в WriteHeader
func (c *Client) Open(table string) (sink.Sink, error) {
	return &tableSink{client: c, table: c.TablePrefix + table}, nil
}

// Close закрывает соединение с ClickHouse
func (c *Client) Close() error {
	return c.conn.Close()
}

type tableSink struct {
	client  *Client
	table   string
	columns models.Header
	batcher *batch.Batcher
}

func (s *tableSink) WriteHeader(columns models.Header) error {
	s.columns = columns
	// Отдельный контекст с таймаутом: отмена прогона не должна обрывать DDL
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := s.client.conn.Exec(ctx, createTableQuery(s.table, columns)); err != nil {
		s.client.Logger.Error("create table", zap.Error(err), zap.String("table", s.table))
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.batcher = batch.NewBatcher(s.table, s.client.BatchSize, s.client.Logger, s.send)
	return nil
}

func (s *tableSink) WriteRow(row models.Row) error {
	if len(row) != len(s.columns) {
		return fmt.Errorf("%w: got %d, want %d", transform.ErrColumnMismatch, len(row), len(s.columns))
	}
	return s.batcher.Add(row)
}

func (s *tableSink) Close() error {
	if s.batcher == nil {
		return nil
	}
	return s.batcher.Flush()
}

// send отправляет пачку строк одним INSERT
func (s *tableSink) send(rows []models.Row) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := s.client.conn.PrepareBatch(ctx, insertQuery(s.table, s.columns))
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := b.Append(nullableArgs(row)...); err != nil {
			_ = b.Abort()
			return fmt.Errorf("append: %w", err)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func createTableQuery(table string, columns models.Header) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = quoteIdent(col) + " Nullable(String)"
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(table) +
		" (" + strings.Join(defs, ", ") + ") ENGINE = MergeTree ORDER BY tuple()"
}

func insertQuery(table string, columns models.Header) string {
	cols := make([]string, len(columns))
	for i, col := range columns {
		cols[i] = quoteIdent(col)
	}
	return "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(cols, ", ") + ")"
}

// nullableArgs — пустое поле уходит в ClickHouse как NULL
func nullableArgs(row models.Row) []any {
	args := make([]any, len(row))
	for i := range row {
		if row[i] == "" {
			args[i] = (*string)(nil)
			continue
		}
		v := row[i]
		args[i] = &v
	}
	return args
}
