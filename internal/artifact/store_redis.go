package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadcrm/pkg/platform/sentinel"
)

const (
	keyPrefix        = "artifact:"
	subjectKeyPrefix = "artifact:subject:"
)

// RedisStore persists artifacts as JSON values with a key TTL matching the
// artifact expiry, so expired exports vanish without a sweeper. A per-subject
// set tracks artifact ids for erasure requests.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, a *Artifact) error {
	ttl := time.Until(a.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("artifact %s already expired", a.ID)
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+a.ID, payload, ttl)
	pipe.SAdd(ctx, subjectKeyPrefix+a.Subject, a.ID)
	// Keep the subject index alive at least as long as its newest artifact.
	pipe.Expire(ctx, subjectKeyPrefix+a.Subject, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store artifact: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Artifact, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &a, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteBySubject(ctx context.Context, subject string) (int, error) {
	ids, err := s.client.SMembers(ctx, subjectKeyPrefix+subject).Result()
	if err != nil {
		return 0, fmt.Errorf("list subject artifacts: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, keyPrefix+id)
	}
	keys = append(keys, subjectKeyPrefix+subject)

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete subject artifacts: %w", err)
	}
	// The index key is not an artifact; expired members also do not count.
	count := int(deleted) - 1
	if count < 0 {
		count = 0
	}
	return count, nil
}
