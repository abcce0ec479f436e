package matcher

import (
	"strings"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/message"
	"sift/pkg/urlnorm"
)

// DomainMatcher attributes data-broker newsletters by sender domain. These
// messages carry many tracking links pointing at a branding placeholder and
// no donation platform at all, so identifier matching never fires for them.
type DomainMatcher struct {
	minLinks        int
	brandingDomains map[string]struct{}
	senderEntities  map[string]string
}

func NewDomainMatcher(cfg config.HeuristicConfig) *DomainMatcher {
	minLinks := cfg.MinLinks
	if minLinks <= 0 {
		minLinks = constants.DefaultNewsletterMinLinks
	}

	branding := make(map[string]struct{}, len(cfg.BrandingDomains))
	for _, d := range cfg.BrandingDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			branding[d] = struct{}{}
		}
	}

	senders := make(map[string]string, len(cfg.SenderEntities))
	for domain, entityID := range cfg.SenderEntities {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" && entityID != "" {
			senders[domain] = entityID
		}
	}

	return &DomainMatcher{
		minLinks:        minLinks,
		brandingDomains: branding,
		senderEntities:  senders,
	}
}

// WithSenders returns a copy of the matcher whose coverage is extended by
// the given sender-domain → entity mappings. Configured mappings win over
// added ones so operator overrides stay stable across registry edits.
func (m *DomainMatcher) WithSenders(senders map[string]string) *DomainMatcher {
	if len(senders) == 0 {
		return m
	}

	merged := make(map[string]string, len(m.senderEntities)+len(senders))
	for domain, entityID := range senders {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
		if domain != "" && entityID != "" {
			merged[domain] = entityID
		}
	}
	for domain, entityID := range m.senderEntities {
		merged[domain] = entityID
	}

	return &DomainMatcher{
		minLinks:        m.minLinks,
		brandingDomains: m.brandingDomains,
		senderEntities:  merged,
	}
}

// Covers reports whether the sender belongs to a configured newsletter
// domain. Only covered senders are ever evaluated by this matcher; everyone
// else falls through to identifier matching untouched.
func (m *DomainMatcher) Covers(sender string) bool {
	_, ok := m.senderEntities[senderDomain(sender)]
	return ok
}

// Match attributes a covered sender's message when it looks like a
// newsletter: enough links, and at least one pointing at a branding domain's
// root path.
func (m *DomainMatcher) Match(sender string, links []message.CtaLink) *Match {
	entityID, ok := m.senderEntities[senderDomain(sender)]
	if !ok {
		return nil
	}

	if len(links) < m.minLinks {
		return nil
	}

	for _, l := range links {
		u := l.BestURL()
		if _, ok := m.brandingDomains[urlnorm.Host(u)]; ok && urlnorm.IsRootPath(u) {
			return &Match{EntityID: entityID, Method: message.MethodAutoDomain}
		}
	}

	return nil
}

// senderDomain pulls the domain out of an email address or bare domain,
// lower-cased with any "www." prefix removed.
func senderDomain(sender string) string {
	s := strings.ToLower(strings.TrimSpace(sender))
	if at := strings.LastIndex(s, "@"); at >= 0 {
		s = s[at+1:]
	}
	return strings.TrimPrefix(s, "www.")
}
