package pump

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
	"SQLDumpPump/internal/parser"
	"SQLDumpPump/internal/sink"
	"SQLDumpPump/internal/source"
	"SQLDumpPump/internal/transform"
)

// State — что сейчас накапливает pump
type State int

const (
	Idle State = iota
	AccumulatingCreate
	AccumulatingInsert
)

func (s State) String() string {
	switch s {
	case AccumulatingCreate:
		return "AccumulatingCreate"
	case AccumulatingInsert:
		return "AccumulatingInsert"
	default:
		return "Idle"
	}
}

// Options — настройки разбора, передаются явно при создании Pump
type Options struct {
	Dialect  parser.Dialect
	Policy   transform.Policy
	FailFast bool
}

// Stats — итог прогона
type Stats struct {
	RunID             string
	Lines             int
	Statements        int
	SkippedStatements int
	FailedStatements  int
	Tables            []*Table
}

// statementBuffer — текст незавершённого оператора и его вид
type statementBuffer struct {
	kind models.StatementKind
	text strings.Builder
}

func (b *statementBuffer) seed(kind models.StatementKind, line string) {
	b.text.Reset()
	b.kind = kind
	b.text.WriteString(line)
}

func (b *statementBuffer) append(line string) {
	b.text.WriteByte(' ')
	b.text.WriteString(line)
}

func (b *statementBuffer) active() bool { return b.kind != models.KindNone }

func (b *statementBuffer) take() string {
	s := b.text.String()
	b.text.Reset()
	b.kind = models.KindNone
	return s
}

// Pump собирает многострочные операторы из потока строк дампа
// и раскладывает строки INSERT по приёмникам таблиц
type Pump struct {
	opts      Options
	schemas   *parser.SchemaExtractor
	tokenizer *parser.Tokenizer
	registry  *Registry
	logger    *zap.Logger

	create statementBuffer
	insert statementBuffer
	active *Table
	stats  Stats
}

func New(opts Options, factory sink.Factory, logger *zap.Logger) *Pump {
	if opts.Policy == "" {
		opts.Policy = transform.Permissive
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run", runID))
	return &Pump{
		opts:      opts,
		schemas:   parser.NewSchemaExtractor(opts.Dialect),
		tokenizer: parser.NewTokenizer(opts.Dialect),
		registry:  NewRegistry(factory, logger),
		logger:    logger,
		stats:     Stats{RunID: runID},
	}
}

// Run читает src до конца или до отмены ctx.
// Приёмники закрываются на любом пути выхода.
func (p *Pump) Run(ctx context.Context, src source.Lines) (err error) {
	defer func() {
		err = multierr.Append(err, p.registry.Close())
	}()

	for {
		line, ok, nextErr := src.Next(ctx)
		if nextErr != nil {
			if errors.Is(nextErr, context.Canceled) {
				p.logger.Info("Остановка по сигналу, вывод сохранён до последней строки")
			}
			return nextErr
		}
		if !ok {
			break
		}
		if err := p.HandleLine(line); err != nil {
			return err
		}
	}

	if p.create.active() || p.insert.active() {
		p.logger.Warn("Дамп закончился внутри незавершённого оператора, он пропущен", zap.Stringer("state", p.State()))
		p.stats.SkippedStatements++
	}
	p.logStats()
	return nil
}

// State — текущее состояние сборки
func (p *Pump) State() State {
	switch {
	case p.create.active():
		return AccumulatingCreate
	case p.insert.active():
		return AccumulatingInsert
	default:
		return Idle
	}
}

// Stats — счётчики прогона; таблицы в алфавитном порядке
func (p *Pump) Stats() Stats {
	s := p.stats
	s.Tables = p.registry.Tables()
	return s
}

// HandleLine обрабатывает одну физическую строку дампа.
// CREATE и INSERT проверяются независимо, сначала CREATE.
func (p *Pump) HandleLine(raw string) error {
	p.stats.Lines++
	line := strings.TrimSpace(raw)
	if line == "" || p.opts.Dialect.IsComment(line) {
		return nil
	}
	term := p.opts.Dialect.Terminator
	kind := parser.Classify(line)

	// CREATE TABLE
	switch {
	case kind == models.KindCreateTable:
		head := p.opts.Dialect.StripLineComment(line)
		p.create.seed(models.KindCreateTable, head)
		if strings.HasSuffix(head, term) {
			if err := p.finishCreate(); err != nil {
				return err
			}
		}
		// строка, начавшая CREATE, в INSERT не попадает
		return nil
	case p.create.active():
		cont := p.opts.Dialect.StripLineComment(line)
		if cont != "" {
			p.create.append(cont)
		}
		if strings.HasSuffix(cont, term) {
			if err := p.finishCreate(); err != nil {
				return err
			}
		}
	}

	// INSERT
	if kind == models.KindInsert {
		name, _ := parser.TableName(line)
		if t, ok := p.registry.Lookup(name); ok {
			p.insert.seed(models.KindInsert, line)
			p.active = t
		} else {
			p.logger.Debug("INSERT в неизвестную таблицу пропущен", zap.String("table", name))
			p.stats.SkippedStatements++
		}
	} else if p.insert.active() {
		p.insert.append(line)
	}

	if p.insert.active() && strings.Contains(line, term) {
		return p.finishInsert()
	}
	return nil
}

func (p *Pump) finishCreate() error {
	text := p.create.take()
	p.stats.Statements++

	schema, ok := p.schemas.Extract(text)
	if !ok {
		name, _ := parser.TableName(text)
		p.logger.Info("CREATE TABLE без колонок, таблица пропущена", zap.String("table", name))
		p.stats.SkippedStatements++
		return nil
	}
	if _, err := p.registry.Register(schema); err != nil {
		return err
	}
	return nil
}

func (p *Pump) finishInsert() error {
	text := p.insert.take()
	table := p.active
	p.active = nil
	p.stats.Statements++

	values, ok := p.opts.Dialect.ValuesClause(text)
	if !ok || table == nil {
		p.logger.Debug("INSERT без VALUES (...) пропущен")
		p.stats.SkippedStatements++
		return nil
	}

	rows, err := p.tokenizer.Rows(values)
	if err != nil {
		table.FailedInserts++
		p.stats.FailedStatements++
		if p.opts.FailFast {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
		p.logger.Warn("Ошибка разбора VALUES, оператор пропущен", zap.String("table", table.Name), zap.Error(err))
		return nil
	}

	for _, row := range rows {
		if err := p.writeRow(table, row); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pump) writeRow(table *Table, row models.Row) error {
	aligned, mismatch, err := transform.Align(row, table.Columns, p.opts.Policy)
	if mismatch {
		table.Mismatched++
		p.logger.Debug("Число полей не совпадает с числом колонок",
			zap.String("table", table.Name), zap.Int("fields", len(row)), zap.Int("columns", len(table.Columns)))
	}
	if err != nil {
		table.RowsSkipped++
		p.logger.Warn("Строка отброшена", zap.String("table", table.Name), zap.Error(err))
		return nil
	}
	if err := table.sink.WriteRow(aligned); err != nil {
		if errors.Is(err, transform.ErrColumnMismatch) {
			table.RowsSkipped++
			p.logger.Warn("Приёмник отклонил строку", zap.String("table", table.Name), zap.Error(err))
			return nil
		}
		return fmt.Errorf("write row %s: %w", table.Name, err)
	}
	table.RowsWritten++
	return nil
}

func (p *Pump) logStats() {
	s := p.Stats()
	for _, t := range s.Tables {
		p.logger.Info("Таблица выгружена",
			zap.String("table", t.Name),
			zap.Int("rows", t.RowsWritten),
			zap.Int("skipped", t.RowsSkipped),
			zap.Int("mismatched", t.Mismatched),
			zap.Int("failedInserts", t.FailedInserts))
	}
	p.logger.Info("Дамп обработан",
		zap.Int("lines", s.Lines),
		zap.Int("statements", s.Statements),
		zap.Int("skipped", s.SkippedStatements),
		zap.Int("failed", s.FailedStatements),
		zap.Int("tables", len(s.Tables)))
}
