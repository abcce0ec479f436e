package matcher

import (
	"sift/internal/entity"
	"sift/internal/extractor"
	"sift/internal/message"
)

// Match is a successful attribution decision.
type Match struct {
	EntityID string
	Method   message.AssignmentMethod
}

var platformMethods = map[string]message.AssignmentMethod{
	extractor.PlatformWinRed:  message.MethodAutoWinRed,
	extractor.PlatformAnedot:  message.MethodAutoAnedot,
	extractor.PlatformPSQ:     message.MethodAutoPSQ,
	extractor.PlatformActBlue: message.MethodAutoActBlue,
}

// RegistryMatcher reconciles extracted identifiers against the entity
// registry. It is deterministic: platforms are tried in priority order,
// identifiers in link order, and the registry in creation order, stopping at
// the first hit. No scoring, no ranking.
type RegistryMatcher struct{}

func NewRegistryMatcher() *RegistryMatcher {
	return &RegistryMatcher{}
}

// Match returns the first entity whose identifier set intersects the
// extractions, or nil when nothing matches. Data-broker entities are never
// considered. The caller supplies the registry in created_at order.
func (m *RegistryMatcher) Match(extractions []extractor.Extraction, registry []entity.Entity) *Match {
	for _, platform := range extractor.PlatformPriority {
		for _, ex := range extractions {
			if ex.Platform != platform {
				continue
			}
			for i := range registry {
				e := &registry[i]
				if e.Type == entity.TypeDataBroker {
					continue
				}
				if containsIdentifier(e.IdentifiersFor(platform), ex.Identifier) {
					return &Match{EntityID: e.ID, Method: platformMethods[platform]}
				}
			}
		}
	}
	return nil
}

func containsIdentifier(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
