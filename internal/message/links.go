package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError marks a CTA link payload that could not be understood. The
// orchestrator skips the message and moves on; it never aborts a batch.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cta links parse error: %s", e.Reason)
}

// ParseCtaLinks is the single parse-and-validate boundary for the CTA link
// payload. Upstream writers were never consistent: the column may hold a
// JSON array of links, a JSON string wrapping such an array, or a bare URL
// string. All shapes are accepted here so no caller re-implements the
// sniffing.
func ParseCtaLinks(raw json.RawMessage) ([]CtaLink, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []CtaLink{}, nil
	}

	if trimmed[0] == '[' {
		var links []CtaLink
		if err := json.Unmarshal(trimmed, &links); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid link array: %v", err)}
		}
		return validateLinks(links)
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, &ParseError{Reason: fmt.Sprintf("invalid string payload: %v", err)}
		}

		innerTrimmed := strings.TrimSpace(inner)
		if strings.HasPrefix(innerTrimmed, "[") {
			return ParseCtaLinks(json.RawMessage(innerTrimmed))
		}
		if innerTrimmed == "" {
			return []CtaLink{}, nil
		}
		// A bare URL string is treated as a single untyped link.
		return []CtaLink{{URL: innerTrimmed}}, nil
	}

	return nil, &ParseError{Reason: fmt.Sprintf("unrecognized payload shape starting with %q", trimmed[0])}
}

func validateLinks(links []CtaLink) ([]CtaLink, error) {
	valid := make([]CtaLink, 0, len(links))
	for _, l := range links {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		valid = append(valid, l)
	}
	return valid, nil
}

// MarshalCtaLinks serializes links back to the canonical stored shape.
func MarshalCtaLinks(links []CtaLink) (json.RawMessage, error) {
	data, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cta links: %w", err)
	}
	return data, nil
}
