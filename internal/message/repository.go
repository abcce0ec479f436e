package message

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "sift/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListUnattributed(ctx context.Context, limit int) ([]Message, error)
	UpdateAssignment(ctx context.Context, id string, entityID string, method AssignmentMethod, assignedAt time.Time) error
	UpdateLinks(ctx context.Context, id string, links []CtaLink) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	links := msg.CtaLinks
	if len(links) == 0 {
		links = json.RawMessage("[]")
	}

	query := `
		INSERT INTO messages (id, channel, sender, cta_links, entity_id, assignment_method, assigned_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var method *string
	if msg.AssignmentMethod != "" {
		m := string(msg.AssignmentMethod)
		method = &m
	}

	_, err := r.db.ExecContext(ctx, query,
		msg.ID, msg.Channel, msg.Sender, []byte(links),
		msg.EntityID, method, msg.AssignedAt, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Message, error) {
	query := `
		SELECT id, channel, sender, cta_links, entity_id, assignment_method, assigned_at, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("message %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListUnattributed returns messages with no entity assignment, oldest first.
// Messages marked reviewed are excluded: manual review is authoritative.
func (r *PostgresRepository) ListUnattributed(ctx context.Context, limit int) ([]Message, error) {
	query := `
		SELECT id, channel, sender, cta_links, entity_id, assignment_method, assigned_at, created_at, updated_at
		FROM messages
		WHERE entity_id IS NULL
		  AND (assignment_method IS NULL OR assignment_method != 'reviewed')
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unattributed messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return messages, nil
}

// UpdateAssignment writes an attribution result. It refuses to touch rows
// whose assignment method is 'reviewed'.
func (r *PostgresRepository) UpdateAssignment(ctx context.Context, id string, entityID string, method AssignmentMethod, assignedAt time.Time) error {
	query := `
		UPDATE messages
		SET entity_id = $2, assignment_method = $3, assigned_at = $4, updated_at = now()
		WHERE id = $1
		  AND (assignment_method IS NULL OR assignment_method != 'reviewed')
	`

	result, err := r.db.ExecContext(ctx, query, id, entityID, string(method), assignedAt)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrConflict.WithDetail("message", fmt.Sprintf("message %s is reviewed or missing", id))
	}

	return nil
}

func (r *PostgresRepository) UpdateLinks(ctx context.Context, id string, links []CtaLink) error {
	payload, err := MarshalCtaLinks(links)
	if err != nil {
		return err
	}

	query := `
		UPDATE messages
		SET cta_links = $2, updated_at = now()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, []byte(payload)); err != nil {
		return fmt.Errorf("failed to update cta links: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var ctaLinks []byte
	var entityID sql.NullString
	var method sql.NullString
	var assignedAt sql.NullTime

	err := row.Scan(
		&msg.ID, &msg.Channel, &msg.Sender, &ctaLinks,
		&entityID, &method, &assignedAt, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.CtaLinks = json.RawMessage(ctaLinks)
	if entityID.Valid {
		msg.EntityID = &entityID.String
	}
	if method.Valid {
		msg.AssignmentMethod = AssignmentMethod(method.String)
	}
	if assignedAt.Valid {
		msg.AssignedAt = &assignedAt.Time
	}

	return &msg, nil
}
