package wizard

import (
	"context"
	"sync"

	"grant-intake/internal/models"
	"grant-intake/internal/store"
)

// recordingGateway keeps every saved snapshot. When gate is set, Save
// blocks until it is closed; started receives one value per Save call.
type recordingGateway struct {
	mu        sync.Mutex
	saved     []*models.ApplicationDraft
	drafts    map[string]*models.ApplicationDraft
	err       error
	gate      chan struct{}
	started   chan struct{}
	active    int
	maxActive int
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{drafts: make(map[string]*models.ApplicationDraft)}
}

func (g *recordingGateway) Save(ctx context.Context, id string, d *models.ApplicationDraft) error {
	g.mu.Lock()
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	gate, started := g.gate, g.started
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.err != nil {
		return g.err
	}
	clone := d.Clone()
	g.saved = append(g.saved, clone)
	g.drafts[id] = clone
	return nil
}

func (g *recordingGateway) Load(ctx context.Context, id string) (*models.ApplicationDraft, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.drafts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

func (g *recordingGateway) List(ctx context.Context, filter store.ListFilter) ([]models.DraftSummary, error) {
	return nil, nil
}

func (g *recordingGateway) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *recordingGateway) saves() []*models.ApplicationDraft {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*models.ApplicationDraft(nil), g.saved...)
}

func (g *recordingGateway) last() *models.ApplicationDraft {
	s := g.saves()
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}
