package resolver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/metrics"
	"sift/pkg/ratelimit"
	"sift/pkg/tracing"
)

// Chain outcomes, used to label resolver metrics.
const (
	outcomeTerminal = "terminal"
	outcomeHopLimit = "hop_limit"
	outcomeBudget   = "budget_exceeded"
	outcomeError    = "error"
	outcomeLoop     = "loop"
	outcomeCached   = "cached"
)

// Resolver follows a wrapped URL through HTTP redirects, interstitial vendor
// pages, meta refreshes, and JavaScript redirects to its final destination.
//
// Resolve never returns an error: every failure mode degrades to the best
// URL known so far. Callers must be able to treat resolution as a pure
// best-effort lookup.
type Resolver struct {
	client       *http.Client
	cache        Cache
	limiter      *ratelimit.HostLimiter
	logger       logger.Logger
	maxHops      int
	chainBudget  time.Duration
	userAgent    string
	maxScanBytes int64
}

func New(cfg config.ResolverConfig, cache Cache, limiter *ratelimit.HostLimiter, log logger.Logger) *Resolver {
	maxHops := cfg.MaxHops
	if maxHops <= 0 {
		maxHops = constants.DefaultMaxHops
	}
	chainBudget := cfg.ChainBudget
	if chainBudget <= 0 {
		chainBudget = constants.DefaultChainBudget
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = constants.UserAgent
	}
	maxScanBytes := cfg.MaxBodyScanBytes
	if maxScanBytes <= 0 {
		maxScanBytes = 512 * 1024
	}
	if cache == nil {
		cache = NoopCache{}
	}
	if limiter == nil {
		limiter = ratelimit.NewHostLimiter(cfg.PerHostRPS, cfg.PerHostBurst)
	}

	return &Resolver{
		client:       newHTTPClient(cfg),
		cache:        cache,
		limiter:      limiter,
		logger:       log,
		maxHops:      maxHops,
		chainBudget:  chainBudget,
		userAgent:    userAgent,
		maxScanBytes: maxScanBytes,
	}
}

// Resolve follows rawURL to its terminal destination. On any failure it
// returns the last URL reached, and for input it cannot even parse it
// returns the input unchanged.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	ctx, span := tracing.GetTracer("attribution-service").Start(ctx, "resolver.resolve")
	defer span.End()

	rawURL = strings.TrimSpace(rawURL)

	current, err := url.Parse(rawURL)
	if err != nil || current.Host == "" || (current.Scheme != "http" && current.Scheme != "https") {
		return rawURL
	}

	if final, ok := r.cache.Get(ctx, rawURL); ok {
		metrics.ResolverChainsTotal.WithLabelValues(outcomeCached).Inc()
		return final
	}

	start := time.Now()
	chainCtx, cancel := context.WithTimeout(ctx, r.chainBudget)
	defer cancel()

	final, outcome := r.follow(chainCtx, current)

	metrics.ResolverChainsTotal.WithLabelValues(outcome).Inc()
	metrics.ObserveChainDuration(time.Since(start))

	if final != rawURL {
		r.cache.Set(ctx, rawURL, final)
	}

	return final
}

func (r *Resolver) follow(ctx context.Context, current *url.URL) (string, string) {
	visited := map[string]struct{}{current.String(): {}}

	for hop := 0; hop < r.maxHops; hop++ {
		if ctx.Err() != nil {
			return current.String(), outcomeBudget
		}

		next, kind, err := r.step(ctx, current)
		if err != nil {
			r.logger.DebugwCtx(ctx, "Resolution stopped",
				"url", current.String(),
				"hop", hop,
				"error", err,
			)
			if ctx.Err() != nil {
				return current.String(), outcomeBudget
			}
			return current.String(), outcomeError
		}
		if next == nil {
			return current.String(), outcomeTerminal
		}

		if _, seen := visited[next.String()]; seen {
			return current.String(), outcomeLoop
		}
		visited[next.String()] = struct{}{}

		metrics.ResolverHopsTotal.WithLabelValues(kind).Inc()
		current = next
	}

	return current.String(), outcomeHopLimit
}

// step performs one hop: a HEAD (falling back to GET when the server
// refuses HEAD), then either an HTTP redirect or a body scan. A nil next
// URL means current is terminal.
func (r *Resolver) step(ctx context.Context, current *url.URL) (*url.URL, string, error) {
	if err := r.limiter.Wait(ctx, current.Hostname()); err != nil {
		return nil, "", err
	}

	resp, err := r.fetch(ctx, http.MethodHead, current)
	if err != nil {
		return nil, "", err
	}

	if headRefused(resp.StatusCode) {
		resp.Body.Close()
		resp, err = r.fetch(ctx, http.MethodGet, current)
		if err != nil {
			return nil, "", err
		}
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		resp.Body.Close()
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, "", nil
		}
		next, ok := r.advance(current, location)
		if !ok {
			return nil, "", nil
		}
		return next, hopHTTP, nil
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", nil
	}

	// The OK response may still be an interstitial page. HEAD carries no
	// body, so re-fetch with GET before scanning.
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		resp.Body.Close()
		resp, err = r.fetch(ctx, http.MethodGet, current)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", nil
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxScanBytes))
	resp.Body.Close()
	if err != nil {
		return nil, "", err
	}

	target, kind := scanBody(body)
	if target == "" {
		return nil, "", nil
	}

	next, ok := r.advance(current, target)
	if !ok {
		return nil, "", nil
	}
	return next, kind, nil
}

func (r *Resolver) fetch(ctx context.Context, method string, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	return r.client.Do(req)
}

// advance resolves a redirect target against the current URL, handling
// relative paths, and rejects targets that lead off HTTP entirely or go
// nowhere new.
func (r *Resolver) advance(current *url.URL, target string) (*url.URL, bool) {
	ref, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return nil, false
	}

	next := current.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		return nil, false
	}
	if next.Host == "" || next.String() == current.String() {
		return nil, false
	}

	return next, true
}

func headRefused(status int) bool {
	switch status {
	case http.StatusForbidden,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusNoContent:
		return true
	}
	return false
}
