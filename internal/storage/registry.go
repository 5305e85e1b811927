package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/homewatch/internal/matcher"
	"github.com/your-org/homewatch/internal/models"
)

// UpsertIdentity creates the identity or refreshes its display fields and
// reactivates it. The stored row is returned.
func (s *PostgresStore) UpsertIdentity(ctx context.Context, name, displayName, imagePath string) (*models.Identity, error) {
	id := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, display_name, image_path)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE
		   SET display_name = EXCLUDED.display_name,
		       image_path = EXCLUDED.image_path,
		       active = TRUE
		 RETURNING id, name, display_name, image_path, active, created_at`,
		uuid.New(), name, displayName, imagePath,
	).Scan(&id.ID, &id.Name, &id.DisplayName, &id.ImagePath, &id.Active, &id.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert identity %s: %w", name, err)
	}
	return id, nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, name string) (*models.Identity, error) {
	id := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, display_name, image_path, active, created_at FROM identities WHERE name = $1`, name,
	).Scan(&id.ID, &id.Name, &id.DisplayName, &id.ImagePath, &id.Active, &id.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, display_name, image_path, active, created_at FROM identities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.DisplayName, &id.ImagePath, &id.Active, &id.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddEmbedding(ctx context.Context, identityID uuid.UUID, embedding []float32, quality float32, sourcePath string) (*models.IdentityEmbedding, error) {
	e := &models.IdentityEmbedding{
		ID:         uuid.New(),
		IdentityID: identityID,
		Embedding:  embedding,
		Quality:    quality,
		SourcePath: sourcePath,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identity_embeddings (id, identity_id, embedding, quality, source_path)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		e.ID, e.IdentityID, pgvector.NewVector(embedding), e.Quality, e.SourcePath,
	).Scan(&e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add embedding: %w", err)
	}
	return e, nil
}

// ReplaceEmbeddings swaps all embeddings of an identity for a single new one.
func (s *PostgresStore) ReplaceEmbeddings(ctx context.Context, identityID uuid.UUID, embedding []float32, quality float32, sourcePath string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM identity_embeddings WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("clear embeddings: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO identity_embeddings (id, identity_id, embedding, quality, source_path)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), identityID, pgvector.NewVector(embedding), quality, sourcePath,
	); err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}
	return tx.Commit(ctx)
}

// LoadRegistry returns every embedding of every active identity. The order
// is stable (name, then enrollment time) and is the matcher's tie-break order.
func (s *PostgresStore) LoadRegistry(ctx context.Context) ([]matcher.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT i.name, e.embedding
		FROM identity_embeddings e
		JOIN identities i ON i.id = e.identity_id
		WHERE i.active
		ORDER BY i.name, e.created_at, e.id`)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer rows.Close()

	var entries []matcher.Entry
	for rows.Next() {
		var (
			name string
			vec  pgvector.Vector
		)
		if err := rows.Scan(&name, &vec); err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		entries = append(entries, matcher.Entry{Identity: name, Embedding: vec.Slice()})
	}
	return entries, rows.Err()
}

func (s *PostgresStore) CountIdentities(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities WHERE active`).Scan(&n)
	return n, err
}
