package entity

import (
	"time"
)

type EntityType string

const (
	TypePolitician   EntityType = "politician"
	TypePAC          EntityType = "pac"
	TypeOrganization EntityType = "organization"
	TypeDataBroker   EntityType = "data_broker"
)

func (t EntityType) Valid() bool {
	switch t {
	case TypePolitician, TypePAC, TypeOrganization, TypeDataBroker:
		return true
	}
	return false
}

// DonationIdentifiers maps a donation platform to the identifiers an entity
// is known by on that platform, e.g. {"winred": ["nrcc", "nrcc-2026"]}.
type DonationIdentifiers map[string][]string

// Entity is a registered sender: a politician, PAC, organization, or data
// broker. Data brokers never have donation identifiers of their own; they are
// matched by sender-domain heuristics instead.
type Entity struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Type                EntityType          `json:"type"`
	Party               string              `json:"party,omitempty"`
	State               string              `json:"state,omitempty"`
	DonationIdentifiers DonationIdentifiers `json:"donation_identifiers,omitempty"`
	SenderDomains       []string            `json:"sender_domains,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// IdentifiersFor returns the entity's identifiers on the given platform,
// lower-cased for comparison.
func (e *Entity) IdentifiersFor(platform string) []string {
	if e.DonationIdentifiers == nil {
		return nil
	}
	return e.DonationIdentifiers[platform]
}

type CreateEntityRequest struct {
	Name                string              `json:"name" binding:"required"`
	Type                EntityType          `json:"type" binding:"required"`
	Party               string              `json:"party"`
	State               string              `json:"state"`
	DonationIdentifiers DonationIdentifiers `json:"donation_identifiers"`
	SenderDomains       []string            `json:"sender_domains"`
}

type UpdateEntityRequest struct {
	Name                *string              `json:"name,omitempty"`
	Type                *EntityType          `json:"type,omitempty"`
	Party               *string              `json:"party,omitempty"`
	State               *string              `json:"state,omitempty"`
	DonationIdentifiers *DonationIdentifiers `json:"donation_identifiers,omitempty"`
	SenderDomains       *[]string            `json:"sender_domains,omitempty"`
}
