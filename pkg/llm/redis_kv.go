package llm

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisKV 用 redis 实现 KV。
type RedisKV struct {
	client goredis.UniversalClient
}

// NewRedisKV 创建 RedisKV。
func NewRedisKV(client goredis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

// MGet 批量读取。
func (r *RedisKV) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

// MSet 通过 pipeline 批量写入并设置过期时间。
func (r *RedisKV) MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	if len(values) == 0 {
		return nil
	}
	_, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, k, v, ttl)
		}
		return nil
	})
	return err
}

var _ KV = (*RedisKV)(nil)
