// Package rediscache keeps draft snapshots in Redis. It serves as the fast
// autosave tier in front of the durable store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grant-intake/internal/models"
	"grant-intake/internal/store"
	"grant-intake/internal/wizard/registry"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "draft:"
	indexKey  = "drafts:by-updated"
)

type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// New returns a cache whose snapshots expire ttl after their last save.
// A zero ttl keeps them forever.
func New(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return keyPrefix + id
}

// Save stores the snapshot and indexes it by update time for List.
func (c *Cache) Save(ctx context.Context, id string, d *models.ApplicationDraft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, draftKey(id), raw, c.ttl)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(d.UpdatedAt.UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save draft %s: %w", id, err)
	}
	return nil
}

func (c *Cache) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	raw, err := c.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load draft %s: %w", id, err)
	}

	var d models.ApplicationDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

// List walks the update-time index newest first. Entries whose snapshot
// has expired are pruned from the index.
func (c *Cache) List(ctx context.Context, filter store.ListFilter) ([]models.DraftSummary, error) {
	ids, err := c.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list drafts: %w", err)
	}
	if len(ids) == 0 {
		return []models.DraftSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = draftKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list drafts: %w", err)
	}

	rows := make([]models.DraftSummary, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var d models.ApplicationDraft
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", ids[i], err)
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		rows = append(rows, d.Summary(registry.OrganizationName))
	}
	if len(expired) > 0 {
		c.client.ZRem(ctx, indexKey, expired...)
	}

	store.SortSummaries(rows)
	return store.Paginate(rows, filter), nil
}

// Delete drops a snapshot and its index entry.
func (c *Cache) Delete(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, draftKey(id))
		pipe.ZRem(ctx, indexKey, id)
		return nil
	})
	return err
}
