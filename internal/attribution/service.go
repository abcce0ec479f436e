package attribution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/entity"
	"sift/internal/extractor"
	"sift/internal/logger"
	"sift/internal/matcher"
	"sift/internal/message"
	pkgerrors "sift/pkg/errors"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/retry"
	"sift/pkg/tracing"
	"sift/pkg/urlnorm"
)

// snapshotPolicy bounds registry snapshot loads. A transient database blip
// must not cancel a whole scheduled run, but waiting minutes for the
// registry would starve the batch deadline.
func snapshotPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
	}
}

// URLResolver is the redirect-resolution collaborator. It never fails; a
// chain that cannot be followed comes back as the input URL.
type URLResolver interface {
	Resolve(ctx context.Context, url string) string
}

type Service struct {
	messages message.Repository
	entities entity.Repository
	resolver URLResolver
	registry *matcher.RegistryMatcher
	domains  *matcher.DomainMatcher
	audit    RunAudit
	events   EventPublisher
	cfg      config.AttributionConfig
	logger   logger.Logger
}

func NewService(
	messages message.Repository,
	entities entity.Repository,
	res URLResolver,
	domains *matcher.DomainMatcher,
	audit RunAudit,
	events EventPublisher,
	cfg config.AttributionConfig,
	log logger.Logger,
) *Service {
	if audit == nil {
		audit = NoopAudit{}
	}
	if events == nil {
		events = NoopPublisher{}
	}
	return &Service{
		messages: messages,
		entities: entities,
		resolver: res,
		registry: matcher.NewRegistryMatcher(),
		domains:  domains,
		audit:    audit,
		events:   events,
		cfg:      cfg,
		logger:   log,
	}
}

// Run attributes one batch of unattributed messages. Failures stay local to
// a single message; the batch itself only fails when its inputs cannot be
// loaded at all.
func (s *Service) Run(ctx context.Context, opts Options) (*Summary, error) {
	ctx, span := tracing.GetTracer("attribution-service").Start(ctx, "attribution.run")
	defer span.End()

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}
	if batchSize > constants.MaxBatchSize {
		batchSize = constants.MaxBatchSize
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}

	summary := &Summary{
		RunID:     runID,
		ByMethod:  make(map[string]int),
		ByPattern: make(map[string]int),
		StartedAt: time.Now(),
	}

	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	domains := s.loadDomains(ctx)

	batch, err := s.messages.ListUnattributed(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load message batch: %w", err)
	}

	s.logger.InfowCtx(ctx, "Attribution run started",
		"batch_size", len(batch),
		"concurrency", concurrency,
		"unwrap_links", opts.UnwrapLinks,
		"registry_entities", len(registry),
	)

	var deadline time.Time
	if s.cfg.BatchDeadline > 0 {
		deadline = summary.StartedAt.Add(s.cfg.BatchDeadline)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range batch {
		// Soft deadline: stop launching new work, keep what already
		// finished. Partial progress is retained; the remainder is picked
		// up by the next scheduled run.
		if !deadline.IsZero() && time.Now().After(deadline) {
			summary.DeadlineSkipped = len(batch) - i
			s.logger.WarnwCtx(ctx, "Batch deadline reached, skipping remainder",
				"skipped", summary.DeadlineSkipped,
			)
			break
		}

		msg := batch[i]
		g.Go(func() error {
			result := s.processMessage(gctx, &msg, opts, registry, domains)

			mu.Lock()
			summary.Processed++
			summary.LinksResolved += result.LinksResolved
			for pattern, n := range result.Patterns {
				summary.ByPattern[pattern] += n
			}
			switch result.Status {
			case statusAssigned:
				summary.Assigned++
				summary.ByMethod[result.Method]++
			case statusUnassigned:
				summary.Unassigned++
			case statusSkipped:
				summary.Skipped++
			default:
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only observes context cancellation.
	_ = g.Wait()

	summary.Duration = time.Since(summary.StartedAt)
	metrics.ObserveBatchDuration(summary.Duration)

	s.logger.InfowCtx(ctx, "Attribution run finished",
		"processed", summary.Processed,
		"assigned", summary.Assigned,
		"unassigned", summary.Unassigned,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"deadline_skipped", summary.DeadlineSkipped,
		"links_resolved", summary.LinksResolved,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	if err := s.audit.RecordRun(ctx, summary.toRecord(opts.UnwrapLinks)); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record run audit", "error", err)
	}
	s.events.RunCompleted(ctx, summary.toRecord(opts.UnwrapLinks))

	return summary, nil
}

// AttributeOne runs the full pipeline for a single message on demand.
func (s *Service) AttributeOne(ctx context.Context, messageID string, unwrap bool) (*MessageResult, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AssignmentMethod == message.MethodReviewed {
		return nil, pkgerrors.ErrConflict.WithDetail("message", "message is manually reviewed")
	}

	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}

	result := s.processMessage(ctx, msg, Options{UnwrapLinks: unwrap}, registry, s.loadDomains(ctx))
	return &result, nil
}

// loadRegistry snapshots the matchable entities for one run.
func (s *Service) loadRegistry(ctx context.Context) ([]entity.Entity, error) {
	var registry []entity.Entity
	err := retry.Retry(ctx, snapshotPolicy(), func() error {
		var loadErr error
		registry, loadErr = s.entities.ListMatchable(ctx)
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entity registry: %w", err)
	}

	metrics.SetRegistryEntitiesLoaded("matchable", len(registry))
	return registry, nil
}

// loadDomains extends the configured newsletter matcher with the sender
// domains registered on data-broker entities. A failed broker load degrades
// to the configured coverage rather than failing the run.
func (s *Service) loadDomains(ctx context.Context) *matcher.DomainMatcher {
	if s.domains == nil {
		return nil
	}

	brokers, err := s.entities.ListDataBrokers(ctx)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Failed to load data brokers, using configured sender domains only", "error", err)
		return s.domains
	}
	metrics.SetRegistryEntitiesLoaded("data_broker", len(brokers))

	senders := make(map[string]string)
	for _, b := range brokers {
		for _, domain := range b.SenderDomains {
			senders[domain] = b.ID
		}
	}
	return s.domains.WithSenders(senders)
}

// UnwrapOne resolves a single message's links without attributing it.
func (s *Service) UnwrapOne(ctx context.Context, messageID string) ([]message.CtaLink, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	links, err := msg.Links()
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err)
	}

	links, resolved := s.unwrapLinks(ctx, links)
	if resolved > 0 {
		if err := s.messages.UpdateLinks(ctx, msg.ID, links); err != nil {
			return nil, err
		}
	}

	return links, nil
}

func (s *Service) processMessage(ctx context.Context, msg *message.Message, opts Options, registry []entity.Entity, domains *matcher.DomainMatcher) (result MessageResult) {
	start := time.Now()
	ctx, span := tracing.GetTracer("attribution-service").Start(ctx, "attribution.process_message")
	defer span.End()
	ctx = logging.WithMessageID(ctx, msg.ID)
	result = MessageResult{MessageID: msg.ID, Status: statusFailed}

	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.RecoverPanic(r)
			s.logger.ErrorwCtx(ctx, "Panic while processing message", "error", err)
			result.Status = statusFailed
		}
		metrics.AttributionMessagesTotal.WithLabelValues(result.Status).Inc()
		metrics.ObserveMessageDuration(time.Since(start), result.Status)
	}()

	links, err := msg.Links()
	if err != nil {
		s.logger.WarnwCtx(ctx, "Skipping message with malformed links", "error", err)
		result.Status = statusSkipped
		return result
	}

	if opts.UnwrapLinks {
		var resolved int
		links, resolved = s.unwrapLinks(ctx, links)
		result.LinksResolved = resolved
		if resolved > 0 {
			if err := s.messages.UpdateLinks(ctx, msg.ID, links); err != nil {
				// Non-fatal: the resolved URLs still drive matching this
				// run; the write is retried next run.
				s.logger.ErrorwCtx(ctx, "Failed to persist resolved links", "error", err)
			}
		}
	}

	result.Patterns = classifyLinks(links)

	match := s.match(msg.Sender, links, registry, domains)
	if match == nil {
		result.Status = statusUnassigned
		return result
	}

	assignedAt := time.Now()
	if err := s.messages.UpdateAssignment(ctx, msg.ID, match.EntityID, match.Method, assignedAt); err != nil {
		if pkgerrors.IsConflict(err) {
			s.logger.InfowCtx(ctx, "Message reviewed mid-run, leaving untouched")
			result.Status = statusSkipped
			return result
		}
		s.logger.ErrorwCtx(ctx, "Failed to persist assignment", "error", err)
		result.Status = statusFailed
		return result
	}

	metrics.AttributionAssignmentsTotal.WithLabelValues(string(match.Method)).Inc()
	s.events.EntityAssigned(ctx, msg.ID, match.EntityID, string(match.Method))
	s.logger.InfowCtx(ctx, "Message attributed",
		"entity_id", match.EntityID,
		"method", match.Method,
	)

	result.Status = statusAssigned
	result.EntityID = match.EntityID
	result.Method = string(match.Method)
	return result
}

// match applies the domain heuristic first for senders it covers, then falls
// through to identifier matching.
func (s *Service) match(sender string, links []message.CtaLink, registry []entity.Entity, domains *matcher.DomainMatcher) *matcher.Match {
	if domains != nil && domains.Covers(sender) {
		if m := domains.Match(sender, links); m != nil {
			return m
		}
	}

	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.BestURL())
	}

	return s.registry.Match(extractor.ExtractAll(urls), registry)
}

// classifyLinks buckets each link's best-known URL into a reporting pattern.
// The counts surface in run summaries and the audit trail only; attribution
// never reads them.
func classifyLinks(links []message.CtaLink) map[string]int {
	if len(links) == 0 {
		return nil
	}

	patterns := make(map[string]int, len(links))
	for _, l := range links {
		patterns[extractor.Classify(l.BestURL()).Pattern]++
	}
	return patterns
}

// unwrapLinks resolves every link that has not been resolved before.
// Already-unwrapped links are left untouched, which makes re-running a batch
// idempotent and cheap.
func (s *Service) unwrapLinks(ctx context.Context, links []message.CtaLink) ([]message.CtaLink, int) {
	resolved := 0
	for i := range links {
		if links[i].Resolved() {
			continue
		}

		final := urlnorm.Normalize(s.resolver.Resolve(ctx, links[i].URL))
		if final == "" || final == urlnorm.Normalize(links[i].URL) {
			continue
		}

		links[i].FinalURL = final
		resolved++
	}
	return links, resolved
}
