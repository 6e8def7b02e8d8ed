package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"SQLDumpPump/internal/config"
)

// RedisStore хранит processed в хэше: поле — путь, значение — размер
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(cfg *config.RedisConfig, key string) (*RedisStore, error) {
	// Создаём клиента Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	// Проверяем подключение с тайм-аутом
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}
	return &RedisStore{client: rdb, key: key}, nil
}

func (r *RedisStore) Load() (map[string]int64, error) {
	ctx := context.Background()
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	return decodeSizes(fields), nil
}

func (r *RedisStore) Save(data map[string]int64) error {
	if len(data) == 0 {
		return nil
	}
	ctx := context.Background()
	return r.client.HSet(ctx, r.key, encodeSizes(data)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func encodeSizes(data map[string]int64) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for path, size := range data {
		out[path] = strconv.FormatInt(size, 10)
	}
	return out
}

// decodeSizes — нечисловые значения (старый формат-множество) считаются размером 0
func decodeSizes(fields map[string]string) map[string]int64 {
	processed := make(map[string]int64, len(fields))
	for path, v := range fields {
		n, _ := strconv.ParseInt(v, 10, 64)
		processed[path] = n
	}
	return processed
}
