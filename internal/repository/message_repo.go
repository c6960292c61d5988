package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vita-ops/internal/domain"
)

// MessageRepository define el contrato de persistencia para mensajes.
type MessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	// ListByIssueID devuelve los mensajes ligados a un issue, del mas viejo
	// al mas nuevo.
	ListByIssueID(ctx context.Context, issueID string) ([]domain.Message, error)
	// LastLinkedIssueID devuelve el issue_id del mensaje mas reciente de la
	// conversacion que tenga uno asignado; "" si no existe.
	LastLinkedIssueID(ctx context.Context, conversationID string) (string, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Message, error)
	// ListAll recorre todos los mensajes paginando por offset (reindex).
	ListAll(ctx context.Context, limit, offset int) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

const messageColumns = `message_id, conversation_id, sender_id, time_stamp, message_text, role, category, severity, issue_id`

func (r *PgMessageRepository) Insert(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (message_id, conversation_id, sender_id, time_stamp, message_text, role, category, severity, issue_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (message_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		message.MessageID,
		message.ConversationID,
		message.SenderID,
		message.TimestampMS,
		message.Text,
		message.Role,
		message.Category,
		message.Severity,
		message.IssueID,
	)
	return err
}

func (r *PgMessageRepository) ListByIssueID(ctx context.Context, issueID string) ([]domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE issue_id = $1
		ORDER BY time_stamp ASC
	`

	rows, err := r.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PgMessageRepository) LastLinkedIssueID(ctx context.Context, conversationID string) (string, error) {
	const query = `
		SELECT issue_id
		FROM messages
		WHERE conversation_id = $1 AND issue_id <> ''
		ORDER BY time_stamp DESC
		LIMIT 1
	`

	var issueID string
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(&issueID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return issueID, nil
}

func (r *PgMessageRepository) ListRecent(ctx context.Context, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		ORDER BY time_stamp DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *PgMessageRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 300
	}
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		ORDER BY time_stamp ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.MessageID,
			&m.ConversationID,
			&m.SenderID,
			&m.TimestampMS,
			&m.Text,
			&m.Role,
			&m.Category,
			&m.Severity,
			&m.IssueID,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
