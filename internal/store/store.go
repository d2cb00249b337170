// Package store defines the persistence gateway for application drafts and
// its implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"grant-intake/internal/models"
	"grant-intake/internal/wizard/registry"
)

// ErrNotFound is returned by Load when no snapshot exists for the id.
var ErrNotFound = errors.New("draft not found")

// Gateway saves and loads full draft snapshots keyed by draft id. A save
// replaces the previous snapshot; concurrent writers race last-write-wins.
// Implementations do not retry.
type Gateway interface {
	Save(ctx context.Context, id string, draft *models.ApplicationDraft) error
	Load(ctx context.Context, id string) (*models.ApplicationDraft, error)
	List(ctx context.Context, filter ListFilter) ([]models.DraftSummary, error)
}

// Invalidator is implemented by gateways that can drop a snapshot.
type Invalidator interface {
	Delete(ctx context.Context, id string) error
}

// ErrInvalidateUnsupported is returned by wrappers whose inner gateway
// cannot drop snapshots.
var ErrInvalidateUnsupported = errors.New("gateway does not support delete")

// ListFilter narrows a listing. Zero values mean no restriction; Limit 0
// means the implementation default.
type ListFilter struct {
	Status models.DraftStatus
	Limit  int
	Offset int
}

const DefaultListLimit = 50

// PageSize is Limit with the default applied.
func (f ListFilter) PageSize() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Memory keeps JSON-encoded snapshots in process.
type Memory struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{drafts: make(map[string][]byte)}
}

func (m *Memory) Save(ctx context.Context, id string, draft *models.ApplicationDraft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.drafts[id] = raw
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	raw, ok := m.drafts[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var d models.ApplicationDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.drafts, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, filter ListFilter) ([]models.DraftSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	rows := make([]models.DraftSummary, 0, len(m.drafts))
	for _, raw := range m.drafts {
		var d models.ApplicationDraft
		if err := json.Unmarshal(raw, &d); err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		rows = append(rows, d.Summary(registry.OrganizationName))
	}
	m.mu.RUnlock()

	SortSummaries(rows)
	return Paginate(rows, filter), nil
}

// SortSummaries orders by most recently updated, then id.
func SortSummaries(rows []models.DraftSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}

// Paginate applies the filter's offset and page size to sorted rows.
func Paginate(rows []models.DraftSummary, filter ListFilter) []models.DraftSummary {
	if filter.Offset >= len(rows) {
		return []models.DraftSummary{}
	}
	rows = rows[max(filter.Offset, 0):]
	if len(rows) > filter.PageSize() {
		rows = rows[:filter.PageSize()]
	}
	return rows
}
