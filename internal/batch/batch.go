package batch

import (
	"go.uber.org/zap"

	"SQLDumpPump/internal/models"
)

// FlushFunc отправляет накопленную пачку строк в хранилище
type FlushFunc func(rows []models.Row) error

// Batcher накапливает строки одной таблицы и отправляет их пачками.
// batchSize — сколько строк отправлять за раз; остаток уходит при Flush.
type Batcher struct {
	table     string
	batchSize int
	logger    *zap.Logger
	flush     FlushFunc
	batch     []models.Row
	sent      int
}

// NewBatcher создает новый batcher
func NewBatcher(table string, batchSize int, logger *zap.Logger, flush FlushFunc) *Batcher {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Batcher{
		table:     table,
		batchSize: batchSize,
		logger:    logger,
		flush:     flush,
		batch:     make([]models.Row, 0, batchSize),
	}
}

// Add кладёт строку в пачку и отправляет её при достижении batchSize
func (b *Batcher) Add(row models.Row) error {
	b.batch = append(b.batch, row)
	if len(b.batch) >= b.batchSize {
		return b.send("batch size reached")
	}
	return nil
}

// Flush отправляет остаток
func (b *Batcher) Flush() error {
	return b.send("flush")
}

// Sent — сколько строк уже успешно отправлено
func (b *Batcher) Sent() int { return b.sent }

func (b *Batcher) send(reason string) error {
	if len(b.batch) == 0 {
		return nil
	}
	b.logger.Debug("Отправляем batch", zap.String("table", b.table), zap.Int("count", len(b.batch)), zap.String("reason", reason))
	if err := b.flush(b.batch); err != nil {
		b.logger.Error("Ошибка при отправке batch", zap.String("table", b.table), zap.Error(err))
		return err
	}
	b.sent += len(b.batch)
	b.batch = make([]models.Row, 0, b.batchSize)
	return nil
}
