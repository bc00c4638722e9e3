package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shenikar/sos_dispatch/internal/models"
)

const pendingMarker = "pending"

// releaseIfPending удаляет ключ, только если он все еще зарезервирован
var releaseIfPending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisIdempotencyStore хранит результаты SOS в Redis, чтобы дубликаты
// распознавались всеми экземплярами сервиса
type RedisIdempotencyStore struct {
	client *redis.Client
	window time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, window time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, window: window}
}

func (r *RedisIdempotencyStore) key(userID, key string) string {
	return fmt.Sprintf("sos:idempotency:%s:%s", userID, key)
}

// Begin резервирует ключ или возвращает ранее сохраненный результат
func (r *RedisIdempotencyStore) Begin(ctx context.Context, userID, key string) (*models.SubmitResult, error) {
	k := r.key(userID, key)
	// вторая попытка нужна, если ключ истек между SETNX и GET
	for attempt := 0; attempt < 2; attempt++ {
		reserved, err := r.client.SetNX(ctx, k, pendingMarker, r.window).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if reserved {
			return nil, nil
		}

		val, err := r.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if string(val) == pendingMarker {
			return nil, models.ErrSubmissionInProgress
		}
		result := &models.SubmitResult{}
		if err := json.Unmarshal(val, result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal idempotent result: %w", err)
		}
		return result, nil
	}
	return nil, models.ErrSubmissionInProgress
}

// Commit сохраняет результат на окно идемпотентности
func (r *RedisIdempotencyStore) Commit(ctx context.Context, userID, key string, result *models.SubmitResult) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotent result: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID, key), val, r.window).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent result: %w", err)
	}
	return nil
}

// Abort снимает резерв, не трогая уже сохраненный результат
func (r *RedisIdempotencyStore) Abort(ctx context.Context, userID, key string) error {
	if err := releaseIfPending.Run(ctx, r.client, []string{r.key(userID, key)}, pendingMarker).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}
