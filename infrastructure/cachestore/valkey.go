package cachestore

import (
	"context"
	"fmt"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/vitalsync/vitalsync/infrastructure/valkey"
)

const keyNamespace = "usercache"

// ValkeyStore keeps each user document as one Valkey hash: scalar fields and
// JSON-encoded section envelopes as hash fields. HSET gives the partial
// merge-write, HDEL the selective null-out, DEL the full invalidation.
type ValkeyStore struct {
	client *valkey.Client
}

func NewValkeyStore(client *valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func (s *ValkeyStore) key(k string) string {
	return s.client.Key(keyNamespace, k)
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (Document, error) {
	m, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.key(key)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("valkey hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		// HGETALL on a missing key returns an empty map, not a NIL.
		return nil, nil
	}
	return Document(m), nil
}

func (s *ValkeyStore) SetMerged(ctx context.Context, key string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	cmd := s.client.B().Hset().Key(s.key(key)).FieldValue()
	for f, v := range fields {
		cmd = cmd.FieldValue(f, v)
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("valkey hset %s: %w", key, err)
	}
	return nil
}

func (s *ValkeyStore) SetFull(ctx context.Context, key string, doc Document) error {
	cmd := s.client.B().Hset().Key(s.key(key)).FieldValue()
	for f, v := range doc {
		cmd = cmd.FieldValue(f, v)
	}
	results := s.client.DoMulti(ctx,
		s.client.B().Del().Key(s.key(key)).Build(),
		cmd.Build(),
	)
	for _, r := range results {
		if err := r.Error(); err != nil {
			return fmt.Errorf("valkey rewrite %s: %w", key, err)
		}
	}
	return nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("valkey del %s: %w", key, err)
	}
	return nil
}

func (s *ValkeyStore) RemoveFields(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.Do(ctx, s.client.B().Hdel().Key(s.key(key)).Field(fields...).Build()).Error(); err != nil {
		return fmt.Errorf("valkey hdel %s: %w", key, err)
	}
	return nil
}

func (s *ValkeyStore) BatchDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.key(k)
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(prefixed...).Build()).Error(); err != nil {
		return fmt.Errorf("valkey batch del: %w", err)
	}
	return nil
}

func (s *ValkeyStore) BatchRemoveFields(ctx context.Context, keys []string, fields ...string) error {
	if len(keys) == 0 || len(fields) == 0 {
		return nil
	}
	cmds := make([]valkeylib.Completed, 0, len(keys))
	for _, k := range keys {
		cmds = append(cmds, s.client.B().Hdel().Key(s.key(k)).Field(fields...).Build())
	}
	for _, r := range s.client.DoMulti(ctx, cmds...) {
		if err := r.Error(); err != nil {
			return fmt.Errorf("valkey batch hdel: %w", err)
		}
	}
	return nil
}

func (s *ValkeyStore) Keys(ctx context.Context) ([]string, error) {
	prefix := s.client.Key(keyNamespace, "")
	var keys []string
	var cursor uint64
	for {
		entry, err := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(prefix+"*").Count(200).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("valkey scan: %w", err)
		}
		for _, k := range entry.Elements {
			keys = append(keys, k[len(prefix):])
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
