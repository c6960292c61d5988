package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// VectorPoint es un punto indexado: embedding + payload del mensaje.
type VectorPoint struct {
	MessageID      string
	Embedding      []float32
	ConversationID string
	SenderID       string
	Role           string
	Category       string
	Severity       string
	IssueID        string
}

// VectorHit es un resultado de busqueda por similitud. Score es coseno,
// mas alto = mas similar.
type VectorHit struct {
	Score          float64
	MessageID      string
	ConversationID string
	SenderID       string
	Role           string
	Category       string
	Severity       string
	IssueID        string
}

// VectorIndex define el contrato del indice vectorial de mensajes.
type VectorIndex interface {
	Upsert(ctx context.Context, point VectorPoint) error
	// SearchByRole busca los topK puntos mas cercanos cuyo payload role
	// coincida exactamente.
	SearchByRole(ctx context.Context, embedding []float32, role string, topK int) ([]VectorHit, error)
	// Exists indica si el mensaje ya fue indexado (ingesta idempotente).
	Exists(ctx context.Context, messageID string) (bool, error)
	// Count devuelve el total de puntos indexados (debug).
	Count(ctx context.Context) (int64, error)
}

// PgVectorIndex implementa VectorIndex sobre pgvector. La tabla se aprovisiona
// de forma perezosa con la dimension descubierta en el primer embedding;
// crearla cuando ya existe es un no-op.
type PgVectorIndex struct {
	pool *pgxpool.Pool

	mu  sync.Mutex
	dim int
}

func NewPgVectorIndex(pool *pgxpool.Pool) *PgVectorIndex {
	return &PgVectorIndex{pool: pool}
}

// PointID deriva un id determinista (uuid v5 del message_id crudo) para que
// reingestas del mismo mensaje colisionen en el mismo punto.
func PointID(messageID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(messageID)).String()
}

func (v *PgVectorIndex) ensureCollection(ctx context.Context, dim int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dim != 0 {
		if v.dim != dim {
			return fmt.Errorf("embedding dimension changed: have %d, got %d", v.dim, dim)
		}
		return nil
	}

	if _, err := v.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create extension: %w", err)
	}

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS message_vectors (
			point_id uuid PRIMARY KEY,
			message_id text NOT NULL,
			conversation_id text NOT NULL DEFAULT '',
			sender_id text NOT NULL DEFAULT '',
			role text NOT NULL DEFAULT '',
			category text NOT NULL DEFAULT '',
			severity text NOT NULL DEFAULT '',
			issue_id text NOT NULL DEFAULT '',
			embedding vector(%d)
		)`, dim)
	if _, err := v.pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if _, err := v.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_message_vectors_role ON message_vectors (role)`); err != nil {
		return fmt.Errorf("create payload index: %w", err)
	}

	v.dim = dim
	return nil
}

func (v *PgVectorIndex) Upsert(ctx context.Context, point VectorPoint) error {
	if len(point.Embedding) == 0 {
		return fmt.Errorf("empty embedding for message %s", point.MessageID)
	}
	if err := v.ensureCollection(ctx, len(point.Embedding)); err != nil {
		return err
	}

	const query = `
		INSERT INTO message_vectors (point_id, message_id, conversation_id, sender_id, role, category, severity, issue_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (point_id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			sender_id = EXCLUDED.sender_id,
			role = EXCLUDED.role,
			category = EXCLUDED.category,
			severity = EXCLUDED.severity,
			issue_id = EXCLUDED.issue_id,
			embedding = EXCLUDED.embedding
	`

	_, err := v.pool.Exec(ctx, query,
		PointID(point.MessageID),
		point.MessageID,
		point.ConversationID,
		point.SenderID,
		point.Role,
		point.Category,
		point.Severity,
		point.IssueID,
		pgvector.NewVector(point.Embedding),
	)
	return err
}

func (v *PgVectorIndex) SearchByRole(ctx context.Context, embedding []float32, role string, topK int) ([]VectorHit, error) {
	if topK <= 0 {
		topK = 5
	}
	const query = `
		SELECT message_id, conversation_id, sender_id, role, category, severity, issue_id,
		       1 - (embedding <=> $1) AS score
		FROM message_vectors
		WHERE role = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`

	rows, err := v.pool.Query(ctx, query, pgvector.NewVector(embedding), role, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(
			&h.MessageID,
			&h.ConversationID,
			&h.SenderID,
			&h.Role,
			&h.Category,
			&h.Severity,
			&h.IssueID,
			&h.Score,
		); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func (v *PgVectorIndex) Exists(ctx context.Context, messageID string) (bool, error) {
	const query = `SELECT 1 FROM message_vectors WHERE point_id = $1`

	var one int
	err := v.pool.QueryRow(ctx, query, PointID(messageID)).Scan(&one)
	if err != nil {
		// Incluye tabla todavia no aprovisionada y ErrNoRows: tratamos ambos
		// como "no indexado" y dejamos que la ingesta continue.
		return false, nil
	}
	return true, nil
}

func (v *PgVectorIndex) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := v.pool.QueryRow(ctx, `SELECT COUNT(*) FROM message_vectors`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ VectorIndex = (*PgVectorIndex)(nil)
