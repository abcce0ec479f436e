package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/entity"
	"sift/internal/extractor"
	"sift/internal/message"
)

func TestRegistryMatcherPlatformPriority(t *testing.T) {
	registry := []entity.Entity{
		{
			ID:   "entity-b",
			Name: "B",
			Type: entity.TypePAC,
			DonationIdentifiers: entity.DonationIdentifiers{
				"anedot": {"nrcc"},
			},
		},
		{
			ID:   "entity-a",
			Name: "A",
			Type: entity.TypePolitician,
			DonationIdentifiers: entity.DonationIdentifiers{
				"winred": {"nrcc"},
			},
		},
	}

	// The Anedot extraction comes first in link order, but WinRed is the
	// higher-priority platform and must win.
	extractions := []extractor.Extraction{
		{Platform: extractor.PlatformAnedot, Identifier: "nrcc"},
		{Platform: extractor.PlatformWinRed, Identifier: "nrcc"},
	}

	m := NewRegistryMatcher().Match(extractions, registry)
	require.NotNil(t, m)
	assert.Equal(t, "entity-a", m.EntityID)
	assert.Equal(t, message.MethodAutoWinRed, m.Method)
}

func TestRegistryMatcherFirstEntityWins(t *testing.T) {
	registry := []entity.Entity{
		{
			ID:                  "older",
			Type:                entity.TypePAC,
			DonationIdentifiers: entity.DonationIdentifiers{"winred": {"shared"}},
		},
		{
			ID:                  "newer",
			Type:                entity.TypePAC,
			DonationIdentifiers: entity.DonationIdentifiers{"winred": {"shared"}},
		},
	}

	m := NewRegistryMatcher().Match([]extractor.Extraction{
		{Platform: extractor.PlatformWinRed, Identifier: "shared"},
	}, registry)
	require.NotNil(t, m)
	assert.Equal(t, "older", m.EntityID)
}

func TestRegistryMatcherSkipsDataBrokers(t *testing.T) {
	registry := []entity.Entity{
		{
			ID:                  "broker",
			Type:                entity.TypeDataBroker,
			DonationIdentifiers: entity.DonationIdentifiers{"winred": {"nrcc"}},
		},
	}

	m := NewRegistryMatcher().Match([]extractor.Extraction{
		{Platform: extractor.PlatformWinRed, Identifier: "nrcc"},
	}, registry)
	assert.Nil(t, m)
}

func TestRegistryMatcherNoMatch(t *testing.T) {
	registry := []entity.Entity{
		{
			ID:                  "entity-a",
			Type:                entity.TypePolitician,
			DonationIdentifiers: entity.DonationIdentifiers{"winred": {"nrcc"}},
		},
	}

	m := NewRegistryMatcher().Match([]extractor.Extraction{
		{Platform: extractor.PlatformActBlue, Identifier: "unknown-page"},
	}, registry)
	assert.Nil(t, m)

	m = NewRegistryMatcher().Match(nil, registry)
	assert.Nil(t, m)
}

func TestRegistryMatcherMethodPerPlatform(t *testing.T) {
	tests := []struct {
		platform string
		method   message.AssignmentMethod
	}{
		{extractor.PlatformWinRed, message.MethodAutoWinRed},
		{extractor.PlatformAnedot, message.MethodAutoAnedot},
		{extractor.PlatformPSQ, message.MethodAutoPSQ},
		{extractor.PlatformActBlue, message.MethodAutoActBlue},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			registry := []entity.Entity{
				{
					ID:                  "e1",
					Type:                entity.TypeOrganization,
					DonationIdentifiers: entity.DonationIdentifiers{tt.platform: {"slug"}},
				},
			}

			m := NewRegistryMatcher().Match([]extractor.Extraction{
				{Platform: tt.platform, Identifier: "slug"},
			}, registry)
			require.NotNil(t, m)
			assert.Equal(t, tt.method, m.Method)
		})
	}
}
