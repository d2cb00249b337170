package store

import (
	"context"
	"errors"
	"sync"

	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
)

// Tiered puts a fast snapshot cache in front of a durable primary. Saves go
// to the primary first; loads try the cache and backfill it on a miss. The
// cache is best effort: its failures are logged and never returned, but a
// cache that may hold an older snapshot than the primary is never read.
type Tiered struct {
	primary Gateway
	cache   Gateway
	logger  logger.Logger

	mu    sync.Mutex
	stale map[string]struct{}
}

func NewTiered(primary, cache Gateway, log logger.Logger) *Tiered {
	return &Tiered{
		primary: primary,
		cache:   cache,
		logger:  log.WithFields(map[string]interface{}{"component": "tiered-store"}),
		stale:   make(map[string]struct{}),
	}
}

func (t *Tiered) Save(ctx context.Context, id string, draft *models.ApplicationDraft) error {
	if err := t.primary.Save(ctx, id, draft); err != nil {
		return err
	}
	t.refresh(ctx, id, draft, "cache write failed")
	return nil
}

// refresh writes draft to the cache. When that fails the cached entry is
// evicted, and when eviction fails too the id bypasses the cache until a
// later write succeeds.
func (t *Tiered) refresh(ctx context.Context, id string, draft *models.ApplicationDraft, msg string) {
	err := t.cache.Save(ctx, id, draft)
	if err == nil {
		t.setStale(id, false)
		return
	}
	fields := map[string]interface{}{"draftId": id, "error": err}

	inv, ok := t.cache.(Invalidator)
	if !ok {
		t.setStale(id, true)
		t.logger.Warn(msg+", cache bypassed for draft", fields)
		return
	}
	if derr := inv.Delete(ctx, id); derr != nil {
		fields["evictError"] = derr
		t.setStale(id, true)
		t.logger.Warn(msg+", cache bypassed for draft", fields)
		return
	}
	t.setStale(id, false)
	t.logger.Warn(msg+", cached snapshot evicted", fields)
}

func (t *Tiered) setStale(id string, stale bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if stale {
		t.stale[id] = struct{}{}
	} else {
		delete(t.stale, id)
	}
}

func (t *Tiered) isStale(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.stale[id]
	return ok
}

func (t *Tiered) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	if !t.isStale(id) {
		draft, err := t.cache.Load(ctx, id)
		if err == nil {
			t.logger.Debug("cache hit", map[string]interface{}{"draftId": id})
			return draft, nil
		}
		if !errors.Is(err, ErrNotFound) {
			t.logger.Warn("cache read failed, falling back to primary", map[string]interface{}{
				"draftId": id,
				"error":   err,
			})
		}
	}

	draft, err := t.primary.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	t.refresh(ctx, id, draft, "cache backfill failed")
	return draft, nil
}

// List always reads the primary; the cache only holds recent snapshots.
func (t *Tiered) List(ctx context.Context, filter ListFilter) ([]models.DraftSummary, error) {
	return t.primary.List(ctx, filter)
}
