package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"SQLDumpPump/internal/parser"
	"SQLDumpPump/internal/transform"
)

var ErrUnknownSink = errors.New("unknown sink")

const (
	SinkCSV        = "csv"
	SinkClickHouse = "clickhouse"
	SinkSQLite     = "sqlite"
)

// ParserConfig — синтаксис дампа. Символы задаются строками из одного символа.
type ParserConfig struct {
	Terminator         string   `mapstructure:"Terminator"`
	Quote              string   `mapstructure:"Quote"`
	Escape             string   `mapstructure:"Escape"`
	Delimiter          string   `mapstructure:"Delimiter"`
	ValuesMarker       string   `mapstructure:"ValuesMarker"`
	CommentPrefixes    []string `mapstructure:"CommentPrefixes"`
	ConstraintKeywords []string `mapstructure:"ConstraintKeywords"`
	FailFast           bool     `mapstructure:"FailFast"` // ошибка в VALUES прерывает весь прогон
}

// CSVConfig — формат выходных CSV-файлов
type CSVConfig struct {
	CRLF bool `mapstructure:"CRLF"`
}

// ClickHouseConfig содержит настройки подключения к ClickHouse
// Поле обязательно при Sink=clickhouse: Address
type ClickHouseConfig struct {
	Address     string `mapstructure:"Address"`
	Username    string `mapstructure:"Username"`
	Password    string `mapstructure:"Password"`
	Database    string `mapstructure:"Database"`
	Protocol    string `mapstructure:"Protocol"` // "native" или "http"
	TablePrefix string `mapstructure:"TablePrefix"`
	BatchSize   int    `mapstructure:"BatchSize"`
}

// SQLiteConfig — файл базы создаётся в OutputDir
type SQLiteConfig struct {
	DatabaseName string `mapstructure:"DatabaseName"`
	BatchSize    int    `mapstructure:"BatchSize"`
}

// WatchConfig — режим наблюдения за каталогом с дампами
type WatchConfig struct {
	Enabled          bool   `mapstructure:"Enabled"`
	FilePattern      string `mapstructure:"FilePattern"`
	SettleSeconds    int    `mapstructure:"SettleSeconds"`
	ProcessedStorage string `mapstructure:"ProcessedStorage"` // "file" или "redis"
	ProcessedFile    string `mapstructure:"ProcessedFile"`
	RedisKey         string `mapstructure:"RedisKey"`
}

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Host     string `mapstructure:"Host"`
	Port     int    `mapstructure:"Port"`
	DB       int    `mapstructure:"DB"`
	Password string `mapstructure:"Password"`
}

// LoggingConfig содержит настройки логирования и интеграции с Sentry
type LoggingConfig struct {
	Level        string `mapstructure:"Level"`
	Format       string `mapstructure:"Format"`       // "console" или "json"
	LogFile      string `mapstructure:"LogFile"`      // путь к файлу логов
	SentryDSN    string `mapstructure:"SentryDSN"`    // DSN для Sentry
	EnableSentry bool   `mapstructure:"EnableSentry"` // включить отправку ошибок в Sentry
}

// Config описывает основные настройки конвертера.
// Все ключи имеют значения по умолчанию, файл конфигурации необязателен.
type Config struct {
	OutputDir  string           `mapstructure:"OutputDir"`
	Sink       string           `mapstructure:"Sink"`
	RowPolicy  string           `mapstructure:"RowPolicy"`
	CSV        CSVConfig        `mapstructure:"CSV"`
	Parser     ParserConfig     `mapstructure:"Parser"`
	ClickHouse ClickHouseConfig `mapstructure:"ClickHouse"`
	SQLite     SQLiteConfig     `mapstructure:"SQLite"`
	Watch      WatchConfig      `mapstructure:"Watch"`
	Redis      RedisConfig      `mapstructure:"Redis"`
	Logging    LoggingConfig    `mapstructure:"Logging"`
}

// LoadConfig читает конфиг из YAML-файла (если path не пустой) и накладывает флаги.
// Шаги:
// 1. Чтение сырого файла
// 2. Очистка данных: удаление BOM, замена табуляций
// 3. Парсинг YAML через viper поверх значений по умолчанию
// 4. Валидация
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	var raw []byte
	if path != "" {
		// 1. Чтение
		data, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// 2. Очистка
		raw = sanitize(data)
	}

	// 3. Парсинг
	cfg, err := parseYAML(raw, flags)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// 4. Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("OutputDir must not be empty")
	}
	switch c.Sink {
	case SinkCSV, SinkSQLite:
	case SinkClickHouse:
		if c.ClickHouse.Address == "" {
			return fmt.Errorf("ClickHouse.Address must not be empty")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSink, c.Sink)
	}
	if _, err := transform.ParsePolicy(c.RowPolicy); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"Parser.Quote":     c.Parser.Quote,
		"Parser.Escape":    c.Parser.Escape,
		"Parser.Delimiter": c.Parser.Delimiter,
	} {
		if len(v) != 1 {
			return fmt.Errorf("%s must be a single character, got %q", name, v)
		}
	}
	if c.Parser.Terminator == "" {
		return fmt.Errorf("Parser.Terminator must not be empty")
	}
	if c.Parser.ValuesMarker == "" {
		return fmt.Errorf("Parser.ValuesMarker must not be empty")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("Logging.Format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	if c.Watch.Enabled {
		if c.Watch.SettleSeconds <= 0 {
			return fmt.Errorf("Watch.SettleSeconds must be positive")
		}
		switch c.Watch.ProcessedStorage {
		case "file", "redis":
		default:
			return fmt.Errorf("Watch.ProcessedStorage must be \"file\" or \"redis\", got %q", c.Watch.ProcessedStorage)
		}
	}
	return nil
}

// Dialect переводит настройки парсера в parser.Dialect
func (p ParserConfig) Dialect() parser.Dialect {
	d := parser.DefaultDialect()
	d.Terminator = p.Terminator
	d.ValuesMarker = p.ValuesMarker
	if len(p.Quote) == 1 {
		d.Quote = p.Quote[0]
	}
	if len(p.Escape) == 1 {
		d.Escape = p.Escape[0]
	}
	if len(p.Delimiter) == 1 {
		d.Delimiter = p.Delimiter[0]
	}
	if p.CommentPrefixes != nil {
		d.CommentPrefixes = p.CommentPrefixes
	}
	if p.ConstraintKeywords != nil {
		d.ConstraintKeywords = p.ConstraintKeywords
	}
	return d
}
