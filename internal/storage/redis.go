package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink keeps the snapshot in a hash: payload + checksum, written atomically.
type RedisSink struct {
	client *redis.Client
	key    string
}

var _ Sink = (*RedisSink)(nil)

func NewRedisSink(client *redis.Client, key string) *RedisSink {
	return &RedisSink{client: client, key: key}
}

func (s *RedisSink) Load(ctx context.Context) (Record, bool, error) {
	vals, err := s.client.HMGet(ctx, s.key, "payload", "checksum").Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis load %q: %w", s.key, err)
	}
	payload, ok := vals[0].(string)
	if !ok {
		return Record{}, false, nil
	}
	checksum, _ := vals[1].(string)
	return Record{Payload: []byte(payload), Checksum: checksum}, true, nil
}

func (s *RedisSink) Save(ctx context.Context, rec Record) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key, "payload", rec.Payload, "checksum", rec.Checksum, "schema_version", SchemaVersion)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save %q: %w", s.key, err)
	}
	return nil
}

func (s *RedisSink) Close() error { return s.client.Close() }
