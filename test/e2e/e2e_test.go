package e2e

import (
	"context"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-intake/internal/common/config"
	"grant-intake/internal/common/database"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/models"
	"grant-intake/internal/search"
	"grant-intake/internal/store"
	"grant-intake/internal/store/postgres"
	"grant-intake/internal/store/rediscache"
	"grant-intake/internal/wizard"
	"grant-intake/internal/wizard/registry"
)

// TestFullE2E drives a complete application through the wizard against
// live PostgreSQL, Redis and Elasticsearch. Set INTAKE_E2E=1 to run it.
func TestFullE2E(t *testing.T) {
	if os.Getenv("INTAKE_E2E") == "" {
		t.Skip("INTAKE_E2E not set, skipping live-services test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)

	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.URL = "http://localhost:9200"

	log := logger.NewTestLogger(t)

	// --- PostgreSQL ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	require.NoError(t, postgres.Migrate(ctx, pg))
	t.Log("PostgreSQL connected")

	// --- Redis ---
	rdb := database.NewRedis(cfg.Database.Redis)
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Log("Redis connected")

	// --- Elasticsearch ---
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err)
	require.NoError(t, es.Ping(ctx), "Elasticsearch ping failed")
	index := search.New(es.Client, cfg.Search.Index+"-e2e", log)
	require.NoError(t, index.EnsureIndex(ctx))
	t.Log("Elasticsearch connected")

	primary := postgres.New(pg.GetDB(), log)
	cache := rediscache.New(rdb.GetClient(), time.Hour)
	gateway := store.NewTiered(primary, cache, log)

	m, err := wizard.New(wizard.Options{
		Gateway:        gateway,
		Logger:         log,
		Debounce:       100 * time.Millisecond,
		GatewayTimeout: 5 * time.Second,
		Listeners:      []wizard.SubmissionListener{index},
	})
	require.NoError(t, err)
	defer m.Close()

	answers := registry.ExampleAnswers()
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		require.NoError(t, m.SetField(models.FieldKey(k), answers[models.FieldKey(k)]))
	}
	for step := 1; step <= m.Registry().Len(); step++ {
		require.NoError(t, m.SubmitStep(step), "step %d", step)
	}

	doc, err := m.SubmitApplication(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, doc.Scores.TotalScore)

	stored, err := primary.Load(ctx, doc.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, stored.Status)

	cached, err := cache.Load(ctx, doc.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, stored.Slug, cached.Slug)

	assert.Eventually(t, func() bool {
		res, err := index.Search(ctx, search.Query{Text: "Kibera", MinScore: 14})
		if err != nil {
			return false
		}
		for _, h := range res.Hits {
			if h.Document.ApplicationID == doc.ApplicationID {
				return true
			}
		}
		return false
	}, 10*time.Second, 500*time.Millisecond, "submitted application not searchable")

	resumed, err := wizard.Resume(ctx, wizard.Options{Gateway: gateway, Logger: log}, doc.ApplicationID)
	require.NoError(t, err)
	defer resumed.Close()
	assert.Equal(t, wizard.Submitted, resumed.State())
}
