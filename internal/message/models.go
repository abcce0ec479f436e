package message

import (
	"encoding/json"
	"time"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AssignmentMethod records how a message was attributed to an entity.
// MethodReviewed marks a manual decision and is never overwritten by
// automation.
type AssignmentMethod string

const (
	MethodAutoWinRed  AssignmentMethod = "auto_winred"
	MethodAutoAnedot  AssignmentMethod = "auto_anedot"
	MethodAutoPSQ     AssignmentMethod = "auto_psq"
	MethodAutoActBlue AssignmentMethod = "auto_actblue"
	MethodAutoDomain  AssignmentMethod = "auto_domain"
	MethodAutoPhone   AssignmentMethod = "auto_phone"
	MethodReviewed    AssignmentMethod = "reviewed"
)

// CtaLink is a call-to-action link as captured from a message. FinalURL is
// set once by redirect resolution; a link whose FinalURL differs from URL is
// considered resolved and is never re-resolved.
type CtaLink struct {
	URL      string `json:"url"`
	FinalURL string `json:"finalUrl,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Resolved reports whether redirect resolution already ran for this link.
func (l CtaLink) Resolved() bool {
	return l.FinalURL != "" && l.FinalURL != l.URL
}

// BestURL returns the terminal URL when known, the raw URL otherwise.
func (l CtaLink) BestURL() string {
	if l.FinalURL != "" {
		return l.FinalURL
	}
	return l.URL
}

type Message struct {
	ID               string           `json:"id"`
	Channel          Channel          `json:"channel"`
	Sender           string           `json:"sender"`
	CtaLinks         json.RawMessage  `json:"cta_links"`
	EntityID         *string          `json:"entity_id,omitempty"`
	AssignmentMethod AssignmentMethod `json:"assignment_method,omitempty"`
	AssignedAt       *time.Time       `json:"assigned_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Links parses the stored CTA link payload through the tolerant boundary.
func (m *Message) Links() ([]CtaLink, error) {
	return ParseCtaLinks(m.CtaLinks)
}
