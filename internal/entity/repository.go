package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sift/internal/logger"
	pkgerrors "sift/pkg/errors"
	"sift/pkg/metrics"
)

type Repository interface {
	Create(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, id string) (*Entity, error)
	Update(ctx context.Context, e *Entity) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entity, error)
	ListMatchable(ctx context.Context) ([]Entity, error)
	ListDataBrokers(ctx context.Context) ([]Entity, error)
}

type PostgresRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) Repository {
	return &PostgresRepository{db: db, logger: log}
}

const entityColumns = `id, name, type, party, state, donation_identifiers, sender_domains, created_at, updated_at`

// observeQuery records one registry database query. A missing row is a
// normal outcome, not a query error.
func observeQuery(operation string, err error) {
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	metrics.IncDatabaseQuery("registry", "postgres", operation, status)
}

func (r *PostgresRepository) Create(ctx context.Context, e *Entity) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now

	identifiers, domains, err := marshalEntityJSON(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO entities (id, name, type, party, state, donation_identifiers, sender_domains, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Type, e.Party, e.State, identifiers, domains, e.CreatedAt, e.UpdatedAt,
	)
	observeQuery("create", err)
	if err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	observeQuery("get", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("entity", fmt.Sprintf("entity %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return e, nil
}

func (r *PostgresRepository) Update(ctx context.Context, e *Entity) error {
	e.UpdatedAt = time.Now()

	identifiers, domains, err := marshalEntityJSON(e)
	if err != nil {
		return err
	}

	query := `
		UPDATE entities
		SET name = $2, type = $3, party = $4, state = $5,
		    donation_identifiers = $6, sender_domains = $7, updated_at = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Type, e.Party, e.State, identifiers, domains, e.UpdatedAt,
	)
	observeQuery("update", err)
	if err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("entity", fmt.Sprintf("entity %s not found", e.ID))
	}

	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	observeQuery("delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrNotFound.WithDetail("entity", fmt.Sprintf("entity %s not found", id))
	}

	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY created_at ASC`
	return r.queryEntities(ctx, "list", query)
}

// ListMatchable returns entities eligible for identifier matching, oldest
// first so that earlier registrations win ties. Data brokers are excluded:
// their identifiers would be relay artifacts, not ownership.
func (r *PostgresRepository) ListMatchable(ctx context.Context) ([]Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE type != 'data_broker'
		ORDER BY created_at ASC
	`
	return r.queryEntities(ctx, "list_matchable", query)
}

// ListDataBrokers returns the relay entities whose sender domains feed the
// newsletter heuristic.
func (r *PostgresRepository) ListDataBrokers(ctx context.Context) ([]Entity, error) {
	query := `
		SELECT ` + entityColumns + `
		FROM entities
		WHERE type = 'data_broker'
		ORDER BY created_at ASC
	`
	return r.queryEntities(ctx, "list_data_brokers", query)
}

func (r *PostgresRepository) queryEntities(ctx context.Context, operation, query string) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx, query)
	observeQuery(operation, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			// A single corrupt row must not take the whole registry down.
			r.logger.WarnwCtx(ctx, "Skipping unreadable entity row", "error", err)
			continue
		}
		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entities, nil
}

func marshalEntityJSON(e *Entity) ([]byte, []byte, error) {
	identifiers := e.DonationIdentifiers
	if identifiers == nil {
		identifiers = DonationIdentifiers{}
	}
	identifiersJSON, err := json.Marshal(identifiers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal donation identifiers: %w", err)
	}

	domains := e.SenderDomains
	if domains == nil {
		domains = []string{}
	}
	domainsJSON, err := json.Marshal(domains)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal sender domains: %w", err)
	}

	return identifiersJSON, domainsJSON, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var party, state sql.NullString
	var identifiers, domains []byte

	err := row.Scan(
		&e.ID, &e.Name, &e.Type, &party, &state,
		&identifiers, &domains, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Party = party.String
	e.State = state.String

	if len(identifiers) > 0 {
		if err := json.Unmarshal(identifiers, &e.DonationIdentifiers); err != nil {
			return nil, fmt.Errorf("invalid donation identifiers for entity %s: %w", e.ID, err)
		}
	}
	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &e.SenderDomains); err != nil {
			return nil, fmt.Errorf("invalid sender domains for entity %s: %w", e.ID, err)
		}
	}

	return &e, nil
}
