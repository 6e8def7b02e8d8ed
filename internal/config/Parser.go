package config

import (
	"bytes"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"SQLDumpPump/internal/parser"
)

// flagKeys — какие флаги командной строки перекрывают ключи конфига
var flagKeys = map[string]string{
	"output": "OutputDir",
	"sink":   "Sink",
	"policy": "RowPolicy",
	"watch":  "Watch.Enabled",
}

// readFile читает все байты из файла по пути
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// sanitize удаляет BOM и табуляции
func sanitize(data []byte) []byte {
	// Удаляем UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	// Заменяем табы на два пробела
	data = bytes.ReplaceAll(data, []byte("\t"), []byte("  "))
	return data
}

// parseYAML парсит YAML-данные в структуру Config.
// Переменные окружения не читаются.
func parseYAML(data []byte, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(data) > 0 {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := parser.DefaultDialect()

	v.SetDefault("OutputDir", "csv_output")
	v.SetDefault("Sink", SinkCSV)
	v.SetDefault("RowPolicy", "permissive")
	v.SetDefault("CSV.CRLF", false)

	v.SetDefault("Parser.Terminator", d.Terminator)
	v.SetDefault("Parser.Quote", string(d.Quote))
	v.SetDefault("Parser.Escape", string(d.Escape))
	v.SetDefault("Parser.Delimiter", string(d.Delimiter))
	v.SetDefault("Parser.ValuesMarker", d.ValuesMarker)
	v.SetDefault("Parser.CommentPrefixes", d.CommentPrefixes)
	v.SetDefault("Parser.ConstraintKeywords", d.ConstraintKeywords)
	v.SetDefault("Parser.FailFast", false)

	v.SetDefault("ClickHouse.Address", "localhost:9000")
	v.SetDefault("ClickHouse.Database", "default")
	v.SetDefault("ClickHouse.Protocol", "native")
	v.SetDefault("ClickHouse.BatchSize", 10000)

	v.SetDefault("SQLite.DatabaseName", "dump.sqlite")
	v.SetDefault("SQLite.BatchSize", 1000)

	v.SetDefault("Watch.Enabled", false)
	v.SetDefault("Watch.FilePattern", "*.sql")
	v.SetDefault("Watch.SettleSeconds", 2)
	v.SetDefault("Watch.ProcessedStorage", "file")
	v.SetDefault("Watch.ProcessedFile", "processed_dumps.json")
	v.SetDefault("Watch.RedisKey", "sqldumppump:processed")

	v.SetDefault("Redis.Host", "localhost")
	v.SetDefault("Redis.Port", 6379)

	v.SetDefault("Logging.Level", "info")
	v.SetDefault("Logging.Format", "console")
}
