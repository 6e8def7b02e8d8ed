package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"SQLDumpPump/internal/clickhouseclient"
	"SQLDumpPump/internal/config"
	"SQLDumpPump/internal/logger"
	"SQLDumpPump/internal/pump"
	"SQLDumpPump/internal/sink"
	"SQLDumpPump/internal/source"
	"SQLDumpPump/internal/sqlite"
	"SQLDumpPump/internal/storage"
	"SQLDumpPump/internal/transform"
	"SQLDumpPump/internal/watcher"
)

const usage = "usage: sqldumppump [--config FILE] [--output DIR] [--sink csv|clickhouse|sqlite] [--policy permissive|pad|strict] [--watch] <dump|->"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("sqldumppump", pflag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "YAML-файл конфигурации")
	flags.String("output", "", "каталог для результата")
	flags.String("sink", "", "приёмник: csv, clickhouse или sqlite")
	flags.String("policy", "", "несовпадение числа полей: permissive, pad или strict")
	flags.Bool("watch", false, "следить за каталогом с дампами")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return 1
	}
	input := flags.Arg(0)

	cfg, err := config.LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		return 1
	}

	rootLogger, err := logger.InitZap(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логгера: %v\n", err)
		return 1
	}
	lg := rootLogger.Named("main")
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Enabled {
		err = watch(ctx, cfg, input, lg)
	} else {
		lg.Info("Конвертация дампа", zap.String("input", input), zap.String("sink", cfg.Sink), zap.String("output", cfg.OutputDir))
		err = convertFile(ctx, cfg, input, cfg.OutputDir, lg)
	}
	switch {
	case errors.Is(err, context.Canceled):
		lg.Info("Получен сигнал остановки, работа завершена")
		return 0
	case err != nil:
		lg.Error("Конвертация завершилась с ошибкой", zap.Error(err))
		return 1
	}
	lg.Info("Работа завершена")
	return 0
}

// convertFile прогоняет один дамп через pump в приёмник из конфига
func convertFile(ctx context.Context, cfg *config.Config, path, outDir string, lg *zap.Logger) error {
	policy, err := transform.ParsePolicy(cfg.RowPolicy)
	if err != nil {
		return err
	}
	src, err := source.Open(path)
	if err != nil {
		return fmt.Errorf("open dump: %w", err)
	}
	defer src.Close()

	factory, err := newFactory(cfg, outDir, lg)
	if err != nil {
		return err
	}
	p := pump.New(pump.Options{
		Dialect:  cfg.Parser.Dialect(),
		Policy:   policy,
		FailFast: cfg.Parser.FailFast,
	}, factory, lg.Named("pump"))
	return p.Run(ctx, src)
}

// newFactory создаёт приёмник таблиц; закрывает его pump
func newFactory(cfg *config.Config, outDir string, lg *zap.Logger) (sink.Factory, error) {
	switch cfg.Sink {
	case config.SinkCSV:
		f := sink.NewCSVFactory(outDir, lg.Named("sink"))
		f.CRLF = cfg.CSV.CRLF
		return f, nil
	case config.SinkClickHouse:
		c, err := clickhouseclient.New(cfg.ClickHouse, lg.Named("clickhouse"))
		if err != nil {
			return nil, fmt.Errorf("подключение к ClickHouse: %w", err)
		}
		return c, nil
	case config.SinkSQLite:
		s, err := sqlite.Open(outDir, cfg.SQLite.DatabaseName, cfg.SQLite.BatchSize, lg.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSink, cfg.Sink)
	}
}

func newStore(cfg *config.Config) (storage.ProcessedStore, func() error, error) {
	if cfg.Watch.ProcessedStorage == "redis" {
		rs, err := storage.NewRedisStore(&cfg.Redis, cfg.Watch.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	}
	return storage.NewFileStore(cfg.Watch.ProcessedFile), func() error { return nil }, nil
}

func watch(ctx context.Context, cfg *config.Config, dir string, lg *zap.Logger) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: watch mode needs a directory", dir)
	}
	store, closeStore, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	w := watcher.New(watcher.Config{
		Dir:       dir,
		Pattern:   cfg.Watch.FilePattern,
		Settle:    time.Duration(cfg.Watch.SettleSeconds) * time.Second,
		OutputDir: cfg.OutputDir,
		Store:     store,
		Convert: func(ctx context.Context, path, outDir string) error {
			return convertFile(ctx, cfg, path, outDir, lg.Named("watcher"))
		},
		Logger: lg.Named("watcher"),
	})
	return w.Start(ctx)
}
