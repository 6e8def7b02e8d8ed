package storage

// ProcessedStore — интерфейс для загрузки/сохранения списка сконвертированных дампов.
// Ключ — путь к дампу, значение — его размер на момент конвертации.
type ProcessedStore interface {
	Load() (map[string]int64, error)
	Save(data map[string]int64) error
}
