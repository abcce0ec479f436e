package entity

import (
	"context"
	"fmt"
	"strings"

	"sift/internal/extractor"
	"sift/internal/logger"
	"sift/pkg/errors"
)

type Service interface {
	CreateEntity(ctx context.Context, req CreateEntityRequest) (*Entity, error)
	GetEntity(ctx context.Context, id string) (*Entity, error)
	UpdateEntity(ctx context.Context, id string, req UpdateEntityRequest) (*Entity, error)
	DeleteEntity(ctx context.Context, id string) error
	ListEntities(ctx context.Context) ([]Entity, error)
}

type service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) Service {
	return &service{repo: repo, logger: log}
}

func (s *service) CreateEntity(ctx context.Context, req CreateEntityRequest) (*Entity, error) {
	e := &Entity{
		Name:                strings.TrimSpace(req.Name),
		Type:                req.Type,
		Party:               req.Party,
		State:               req.State,
		DonationIdentifiers: normalizeIdentifiers(req.DonationIdentifiers),
		SenderDomains:       normalizeDomains(req.SenderDomains),
	}

	if err := validateEntity(e); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Entity created",
		"entity_id", e.ID,
		"name", e.Name,
		"type", e.Type,
	)

	return e, nil
}

func (s *service) GetEntity(ctx context.Context, id string) (*Entity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdateEntity(ctx context.Context, id string, req UpdateEntityRequest) (*Entity, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		e.Type = *req.Type
	}
	if req.Party != nil {
		e.Party = *req.Party
	}
	if req.State != nil {
		e.State = *req.State
	}
	if req.DonationIdentifiers != nil {
		e.DonationIdentifiers = normalizeIdentifiers(*req.DonationIdentifiers)
	}
	if req.SenderDomains != nil {
		e.SenderDomains = normalizeDomains(*req.SenderDomains)
	}

	if err := validateEntity(e); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Entity updated", "entity_id", e.ID)

	return e, nil
}

func (s *service) DeleteEntity(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfowCtx(ctx, "Entity deleted", "entity_id", id)
	return nil
}

func (s *service) ListEntities(ctx context.Context) ([]Entity, error) {
	return s.repo.List(ctx)
}

func validateEntity(e *Entity) error {
	if e.Name == "" {
		return errors.ErrValidation.WithDetail("message", "entity name is required")
	}
	if !e.Type.Valid() {
		return errors.ErrValidation.WithDetail("message", fmt.Sprintf("invalid entity type %q", e.Type))
	}
	for platform := range e.DonationIdentifiers {
		if !extractor.KnownPlatform(platform) {
			return errors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown donation platform %q", platform))
		}
	}
	return nil
}

// normalizeIdentifiers lower-cases platforms and identifiers so matching is
// a plain string comparison, and drops empties.
func normalizeIdentifiers(in DonationIdentifiers) DonationIdentifiers {
	if in == nil {
		return nil
	}
	out := make(DonationIdentifiers, len(in))
	for platform, ids := range in {
		platform = strings.ToLower(strings.TrimSpace(platform))
		if platform == "" {
			continue
		}
		cleaned := make([]string, 0, len(ids))
		for _, id := range ids {
			id = strings.ToLower(strings.TrimSpace(id))
			if id != "" {
				cleaned = append(cleaned, id)
			}
		}
		if len(cleaned) > 0 {
			out[platform] = cleaned
		}
	}
	return out
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
