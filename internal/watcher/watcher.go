package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"SQLDumpPump/internal/storage"
)

// ConvertFunc конвертирует один дамп в каталог outDir
type ConvertFunc func(ctx context.Context, path, outDir string) error

type Config struct {
	Dir       string
	Pattern   string
	Settle    time.Duration
	OutputDir string
	Store     storage.ProcessedStore
	Convert   ConvertFunc
	Logger    *zap.Logger
}

// Watcher следит за каталогом и конвертирует появившиеся дампы по одному
type Watcher struct {
	cfg       Config
	processed map[string]int64
	pending   map[string]time.Time // файл -> время последнего события
	mu        sync.RWMutex
}

func New(cfg Config) *Watcher {
	processed, err := cfg.Store.Load()
	if err != nil {
		cfg.Logger.Error("Не удалось загрузить processed", zap.Error(err))
		processed = make(map[string]int64)
	}
	return &Watcher{
		cfg:       cfg,
		processed: processed,
		pending:   make(map[string]time.Time),
	}
}

// Start блокируется до отмены ctx. Возвращает nil при штатной остановке.
func (w *Watcher) Start(ctx context.Context) error {
	dw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer dw.Close()
	if err := dw.Add(w.cfg.Dir); err != nil {
		return err
	}
	w.cfg.Logger.Info("Наблюдение за каталогом", zap.String("dir", w.cfg.Dir), zap.String("pattern", w.cfg.Pattern))

	// Начальное сканирование
	if err := w.ScanInitialFiles(ctx); err != nil {
		return ignoreCanceled(err)
	}

	tick := w.cfg.Settle / 2
	if tick < 50*time.Millisecond {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.cfg.Logger.Info("Watcher остановлен по сигналу shutdown")
			return nil
		case ev, ok := <-dw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !matches(w.cfg.Pattern, ev.Name) {
				continue
			}
			w.pending[ev.Name] = time.Now()
		case err, ok := <-dw.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Error("Ошибка watcher для каталога", zap.Error(err))
		case now := <-ticker.C:
			for _, path := range dueFiles(w.pending, now, w.cfg.Settle) {
				delete(w.pending, path)
				if err := w.processFile(ctx, path); err != nil {
					return ignoreCanceled(err)
				}
			}
		}
	}
}

// ScanInitialFiles конвертирует подходящие файлы каталога, начиная с самых старых
func (w *Watcher) ScanInitialFiles(ctx context.Context) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	type fileWithTime struct {
		Path string
		Mod  time.Time
	}
	var sorted []fileWithTime
	for _, e := range entries {
		if e.IsDir() || !matches(w.cfg.Pattern, e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sorted = append(sorted, fileWithTime{Path: filepath.Join(w.cfg.Dir, e.Name()), Mod: info.ModTime()})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Mod.Before(sorted[j].Mod)
	})
	for _, f := range sorted {
		if err := w.processFile(ctx, f.Path); err != nil {
			return err
		}
	}
	return nil
}

// processFile возвращает ошибку только при отмене ctx;
// ошибки конвертации логируются, файл не помечается обработанным
func (w *Watcher) processFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		w.cfg.Logger.Debug("Файл исчез до конвертации", zap.String("file", path))
		return nil
	}
	w.mu.RLock()
	convert := shouldConvert(w.processed, path, info.Size())
	w.mu.RUnlock()
	if !convert {
		w.cfg.Logger.Debug("Пропускаем ранее обработанный файл", zap.String("file", path))
		return nil
	}

	outDir := OutputDirFor(w.cfg.OutputDir, path)
	w.cfg.Logger.Info("Конвертируем дамп", zap.String("file", path), zap.String("output", outDir))
	if err := w.cfg.Convert(ctx, path, outDir); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return context.Canceled
		}
		w.cfg.Logger.Error("Ошибка конвертации дампа", zap.String("file", path), zap.Error(err))
		return nil
	}

	w.mu.Lock()
	w.processed[path] = info.Size()
	snapshot := make(map[string]int64, len(w.processed))
	for k, v := range w.processed {
		snapshot[k] = v
	}
	w.mu.Unlock()
	if err := w.cfg.Store.Save(snapshot); err != nil {
		w.cfg.Logger.Error("Не удалось сохранить processed", zap.Error(err))
	}
	return nil
}

// Processed — копия отметок об обработанных файлах
func (w *Watcher) Processed() map[string]int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]int64, len(w.processed))
	for k, v := range w.processed {
		out[k] = v
	}
	return out
}

// OutputDirFor — <OutputDir>/<имя дампа без расширения>
func OutputDirFor(root, path string) string {
	base := filepath.Base(path)
	return filepath.Join(root, strings.TrimSuffix(base, filepath.Ext(base)))
}

func matches(pattern, path string) bool {
	ok, err := filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

func shouldConvert(processed map[string]int64, path string, size int64) bool {
	prev, ok := processed[path]
	return !ok || prev != size
}

// dueFiles — файлы, по которым событий не было дольше settle, в алфавитном порядке
func dueFiles(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var due []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			due = append(due, path)
		}
	}
	sort.Strings(due)
	return due
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
