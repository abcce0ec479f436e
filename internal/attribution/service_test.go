package attribution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/entity"
	"sift/internal/logger"
	"sift/internal/matcher"
	"sift/internal/message"
	pkgerrors "sift/pkg/errors"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*message.Message

	assignErr   map[string]error
	assignments map[string]string
	linkUpdates int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:    make(map[string]*message.Message),
		assignErr:   make(map[string]error),
		assignments: make(map[string]string),
	}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = msg
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	clone := *msg
	return &clone, nil
}

func (r *fakeMessageRepo) ListUnattributed(ctx context.Context, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, msg := range r.messages {
		if msg.EntityID == nil && msg.AssignmentMethod != message.MethodReviewed {
			out = append(out, *msg)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) UpdateAssignment(ctx context.Context, id string, entityID string, method message.AssignmentMethod, assignedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.assignErr[id]; ok {
		return err
	}
	msg := r.messages[id]
	msg.EntityID = &entityID
	msg.AssignmentMethod = method
	msg.AssignedAt = &assignedAt
	r.assignments[id] = entityID
	return nil
}

func (r *fakeMessageRepo) UpdateLinks(ctx context.Context, id string, links []message.CtaLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := message.MarshalCtaLinks(links)
	if err != nil {
		return err
	}
	r.messages[id].CtaLinks = raw
	r.linkUpdates++
	return nil
}

type fakeEntityRepo struct {
	matchable []entity.Entity
	brokers   []entity.Entity
}

func (r *fakeEntityRepo) Create(ctx context.Context, e *entity.Entity) error { return nil }
func (r *fakeEntityRepo) GetByID(ctx context.Context, id string) (*entity.Entity, error) {
	return nil, pkgerrors.ErrNotFound
}
func (r *fakeEntityRepo) Update(ctx context.Context, e *entity.Entity) error { return nil }
func (r *fakeEntityRepo) Delete(ctx context.Context, id string) error        { return nil }
func (r *fakeEntityRepo) List(ctx context.Context) ([]entity.Entity, error) {
	return r.matchable, nil
}
func (r *fakeEntityRepo) ListMatchable(ctx context.Context) ([]entity.Entity, error) {
	return r.matchable, nil
}
func (r *fakeEntityRepo) ListDataBrokers(ctx context.Context) ([]entity.Entity, error) {
	return r.brokers, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	targets map[string]string
	calls   int
}

func (r *fakeResolver) Resolve(ctx context.Context, url string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if final, ok := r.targets[url]; ok {
		return final
	}
	return url
}

func testService(messages *fakeMessageRepo, entities *fakeEntityRepo, res *fakeResolver, domains *matcher.DomainMatcher) *Service {
	cfg := config.AttributionConfig{
		BatchSize:   100,
		Concurrency: 4,
	}
	return NewService(messages, entities, res, domains, nil, nil, cfg, logger.NopLogger())
}

func winredRegistry() []entity.Entity {
	return []entity.Entity{
		{
			ID:   "entity-nrcc",
			Name: "NRCC",
			Type: entity.TypePAC,
			DonationIdentifiers: entity.DonationIdentifiers{
				"winred": {"nrcc"},
			},
		},
	}
}

func rawLinks(t *testing.T, links []message.CtaLink) json.RawMessage {
	t.Helper()
	raw, err := message.MarshalCtaLinks(links)
	require.NoError(t, err)
	return raw
}

func TestRunAttributesBatch(t *testing.T) {
	messages := newFakeMessageRepo()
	res := &fakeResolver{targets: map[string]string{}}

	for i := 0; i < 9; i++ {
		id := fmt.Sprintf("msg-%d", i)
		wrapped := fmt.Sprintf("https://track.example/%d", i)
		res.targets[wrapped] = "https://secure.winred.com/nrcc/donate?utm=1"
		messages.Create(context.Background(), &message.Message{
			ID:       id,
			Channel:  message.ChannelEmail,
			Sender:   "alerts@campaign.example",
			CtaLinks: rawLinks(t, []message.CtaLink{{URL: wrapped}}),
		})
	}
	// One message with an unparseable link payload; it is skipped, the
	// batch is not.
	messages.Create(context.Background(), &message.Message{
		ID:       "msg-bad",
		Channel:  message.ChannelEmail,
		Sender:   "alerts@campaign.example",
		CtaLinks: json.RawMessage(`{"not":"an array"}`),
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, res, nil)

	summary, err := svc.Run(context.Background(), Options{UnwrapLinks: true})
	require.NoError(t, err)

	assert.Equal(t, 10, summary.Processed)
	assert.Equal(t, 9, summary.Assigned)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 9, summary.LinksResolved)
	assert.Equal(t, 9, summary.ByMethod["auto_winred"])
	assert.Equal(t, 9, summary.ByPattern["winred"], "resolved links are classified for reporting")
	assert.Len(t, messages.assignments, 9)
}

func TestRunSkipsAlreadyResolvedLinks(t *testing.T) {
	messages := newFakeMessageRepo()
	res := &fakeResolver{targets: map[string]string{}}

	messages.Create(context.Background(), &message.Message{
		ID:      "msg-1",
		Channel: message.ChannelEmail,
		Sender:  "alerts@campaign.example",
		CtaLinks: rawLinks(t, []message.CtaLink{{
			URL:      "https://track.example/a",
			FinalURL: "https://secure.winred.com/nrcc",
		}}),
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, res, nil)

	summary, err := svc.Run(context.Background(), Options{UnwrapLinks: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 0, summary.LinksResolved)
	assert.Equal(t, 0, res.calls, "resolved links must not be re-resolved")
	assert.Equal(t, 0, messages.linkUpdates)
}

func TestRunLeavesUnmatchedUnassigned(t *testing.T) {
	messages := newFakeMessageRepo()
	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelSMS,
		Sender:   "12345",
		CtaLinks: rawLinks(t, []message.CtaLink{{URL: "https://news.example.com/story"}}),
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, nil)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Unassigned)
	assert.Empty(t, messages.assignments, "no fallback entity is ever assigned")

	// Unmatched links still show up in the reporting buckets.
	assert.Equal(t, 1, summary.ByPattern["other"])
}

func TestRunReviewedMidRunIsSticky(t *testing.T) {
	messages := newFakeMessageRepo()
	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelEmail,
		Sender:   "alerts@campaign.example",
		CtaLinks: rawLinks(t, []message.CtaLink{{URL: "https://secure.winred.com/nrcc"}}),
	})
	messages.assignErr["msg-1"] = pkgerrors.ErrConflict

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, nil)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Assigned)
	assert.Empty(t, messages.assignments)
}

func TestRunPersistenceFailureIsLocal(t *testing.T) {
	messages := newFakeMessageRepo()
	for _, id := range []string{"msg-ok", "msg-broken"} {
		messages.Create(context.Background(), &message.Message{
			ID:       id,
			Channel:  message.ChannelEmail,
			Sender:   "alerts@campaign.example",
			CtaLinks: rawLinks(t, []message.CtaLink{{URL: "https://secure.winred.com/nrcc"}}),
		})
	}
	messages.assignErr["msg-broken"] = pkgerrors.ErrInternal.WithDetail("message", "write failed")

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, nil)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "entity-nrcc", messages.assignments["msg-ok"])
}

func TestRunDomainHeuristicBeforeRegistry(t *testing.T) {
	messages := newFakeMessageRepo()

	links := make([]message.CtaLink, 0, 10)
	for i := 0; i < 8; i++ {
		links = append(links, message.CtaLink{URL: fmt.Sprintf("https://track.example/%d", i)})
	}
	links = append(links, message.CtaLink{URL: "https://dailybrief.example/"})
	// A donation link is present, but the covered sender's heuristic wins.
	links = append(links, message.CtaLink{URL: "https://secure.winred.com/nrcc"})

	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelEmail,
		Sender:   "news@mail.dailybrief.example",
		CtaLinks: rawLinks(t, links),
	})

	domains := matcher.NewDomainMatcher(config.HeuristicConfig{
		MinLinks:        9,
		BrandingDomains: []string{"dailybrief.example"},
		SenderEntities:  map[string]string{"mail.dailybrief.example": "broker-1"},
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, domains)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 1, summary.ByMethod["auto_domain"])
	assert.Equal(t, "broker-1", messages.assignments["msg-1"])
}

func TestRunBrokerSendersFromRegistry(t *testing.T) {
	messages := newFakeMessageRepo()

	links := make([]message.CtaLink, 0, 9)
	for i := 0; i < 8; i++ {
		links = append(links, message.CtaLink{URL: fmt.Sprintf("https://track.example/%d", i)})
	}
	links = append(links, message.CtaLink{URL: "https://dailybrief.example/"})

	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelEmail,
		Sender:   "news@mail.dailybrief.example",
		CtaLinks: rawLinks(t, links),
	})

	// The sender mapping comes from the registry's data-broker record, not
	// from configuration.
	domains := matcher.NewDomainMatcher(config.HeuristicConfig{
		MinLinks:        9,
		BrandingDomains: []string{"dailybrief.example"},
	})
	entities := &fakeEntityRepo{
		matchable: winredRegistry(),
		brokers: []entity.Entity{{
			ID:            "broker-registry",
			Name:          "Daily Brief",
			Type:          entity.TypeDataBroker,
			SenderDomains: []string{"mail.dailybrief.example"},
		}},
	}

	svc := testService(messages, entities, &fakeResolver{}, domains)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ByMethod["auto_domain"])
	assert.Equal(t, "broker-registry", messages.assignments["msg-1"])
}

func TestRunUncoveredHeuristicFallsThrough(t *testing.T) {
	messages := newFakeMessageRepo()
	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelEmail,
		Sender:   "news@mail.dailybrief.example",
		CtaLinks: rawLinks(t, []message.CtaLink{{URL: "https://secure.winred.com/nrcc"}}),
	})

	// Covered sender, but only one link: the newsletter shape does not
	// hold, so identifier matching still applies.
	domains := matcher.NewDomainMatcher(config.HeuristicConfig{
		MinLinks:        9,
		BrandingDomains: []string{"dailybrief.example"},
		SenderEntities:  map[string]string{"mail.dailybrief.example": "broker-1"},
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, domains)

	summary, err := svc.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ByMethod["auto_winred"])
	assert.Equal(t, "entity-nrcc", messages.assignments["msg-1"])
}

func TestAttributeOneReviewedRejected(t *testing.T) {
	messages := newFakeMessageRepo()
	entityID := "entity-nrcc"
	messages.Create(context.Background(), &message.Message{
		ID:               "msg-1",
		Channel:          message.ChannelEmail,
		Sender:           "alerts@campaign.example",
		CtaLinks:         rawLinks(t, []message.CtaLink{{URL: "https://secure.winred.com/nrcc"}}),
		EntityID:         &entityID,
		AssignmentMethod: message.MethodReviewed,
	})

	svc := testService(messages, &fakeEntityRepo{matchable: winredRegistry()}, &fakeResolver{}, nil)

	_, err := svc.AttributeOne(context.Background(), "msg-1", false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestUnwrapOnePersistsLinks(t *testing.T) {
	messages := newFakeMessageRepo()
	res := &fakeResolver{targets: map[string]string{
		"https://track.example/a": "https://secure.winred.com/nrcc?utm=9",
	}}

	messages.Create(context.Background(), &message.Message{
		ID:       "msg-1",
		Channel:  message.ChannelEmail,
		Sender:   "alerts@campaign.example",
		CtaLinks: rawLinks(t, []message.CtaLink{{URL: "https://track.example/a"}}),
	})

	svc := testService(messages, &fakeEntityRepo{}, res, nil)

	links, err := svc.UnwrapOne(context.Background(), "msg-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://secure.winred.com/nrcc", links[0].FinalURL)
	assert.Equal(t, 1, messages.linkUpdates)

	// Nothing to assign here, only unwrap.
	assert.Empty(t, messages.assignments)
}

func TestUnwrapOneNotFound(t *testing.T) {
	svc := testService(newFakeMessageRepo(), &fakeEntityRepo{}, &fakeResolver{}, nil)

	_, err := svc.UnwrapOne(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
