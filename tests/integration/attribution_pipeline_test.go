package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/attribution"
	"sift/internal/config"
	"sift/internal/entity"
	"sift/internal/matcher"
	"sift/internal/message"
	"sift/internal/resolver"
)

// Full pipeline against real Postgres and Redis: a wrapped link is crawled
// through a redirect chain, cached, extracted, and matched to an entity.
func TestAttributionPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, true)
	ctx := context.Background()
	log := createTestLogger()

	// Tracking redirector: an HTTP hop, then a meta-refresh interstitial
	// pointing at the donation page.
	var donationURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wrapped":
			http.Redirect(w, r, "/interstitial", http.StatusFound)
		case "/interstitial":
			w.Write([]byte(`<meta http-equiv="refresh" content="0;url=` + donationURL + `">`))
		case "/donate/nrcc":
			w.Write([]byte("<html>donate</html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	donationURL = srv.URL + "/donate/nrcc"

	entityRepo := entity.NewRepository(infra.PostgresDB, log)
	messageRepo := message.NewRepository(infra.PostgresDB)

	pac := createTestEntity(entity.TypePAC, entity.DonationIdentifiers{"winred": {"nrcc"}})
	require.NoError(t, entityRepo.Create(ctx, pac))

	// The second link is already unwrapped; it must be left untouched.
	wrapped := createTestMessage(t, "alerts@campaign.example", []message.CtaLink{
		{URL: srv.URL + "/wrapped"},
		{URL: "https://track.example/z", FinalURL: "https://secure.winred.com/nrcc/donate"},
	})
	require.NoError(t, messageRepo.Create(ctx, wrapped))

	cache := resolver.NewRedisCache(infra.RedisClient, time.Hour, log)
	res := resolver.New(config.ResolverConfig{
		MaxHops:      10,
		HopTimeout:   5 * time.Second,
		ChainBudget:  20 * time.Second,
		PerHostRPS:   1000,
		PerHostBurst: 1000,
	}, cache, nil, log)

	svc := attribution.NewService(
		messageRepo, entityRepo, res,
		matcher.NewDomainMatcher(config.HeuristicConfig{MinLinks: 9}),
		nil, nil,
		config.AttributionConfig{BatchSize: 100, Concurrency: 2},
		log,
	)

	summary, err := svc.Run(ctx, attribution.Options{UnwrapLinks: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 1, summary.ByMethod["auto_winred"])
	assert.Equal(t, 1, summary.LinksResolved)

	got, err := messageRepo.GetByID(ctx, wrapped.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EntityID)
	assert.Equal(t, pac.ID, *got.EntityID)
	assert.Equal(t, message.MethodAutoWinRed, got.AssignmentMethod)

	// The resolved chain was persisted and the wrapped link now carries its
	// terminal URL.
	links, err := got.Links()
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, donationURL, links[0].FinalURL)

	// A second run finds nothing to do and resolves nothing new.
	summary, err = svc.Run(ctx, attribution.Options{UnwrapLinks: true})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
}

func TestMongoRunAudit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, true, false)
	ctx := context.Background()

	audit := attribution.NewMongoRunAudit(infra.MongoClient, "test_db", createTestLogger())

	first := attribution.RunRecord{
		RunID:     "run-1",
		Processed: 10,
		Assigned:  7,
		StartedAt: time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond),
	}
	second := attribution.RunRecord{
		RunID:     "run-2",
		Processed: 5,
		Assigned:  5,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, audit.RecordRun(ctx, first))
	require.NoError(t, audit.RecordRun(ctx, second))

	records, err := audit.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, "run-2", records[0].RunID)
	assert.Equal(t, "run-1", records[1].RunID)

	records, err = audit.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-2", records[0].RunID)
}
