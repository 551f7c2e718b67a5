package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Pool is the part of *pgxpool.Pool the store uses.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

// Postgres stores documents as JSONB rows in the documents table.
type Postgres struct {
	pool Pool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `
    SELECT data
    FROM documents
    WHERE collection = $1 AND id = $2
  `, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: raw}, nil
}

// Query matches equality filters with JSONB containment, which the GIN index
// on data serves.
func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	containment := make(map[string]any, len(q.Filters))
	for _, f := range q.Filters {
		containment[f.Field] = f.Value
	}
	filterJSON, err := json.Marshal(containment)
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	sqlLimit := any(nil)
	if q.Limit > 0 {
		sqlLimit = q.Limit
	}

	rows, err := p.pool.Query(ctx, queryOrderSQL(q.Order), collection, filterJSON, sqlLimit, max(q.Offset, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		var raw []byte
		if err := rows.Scan(&doc.ID, &raw); err != nil {
			return nil, err
		}
		doc.Data = raw
		out = append(out, doc)
	}
	return out, rows.Err()
}

func queryOrderSQL(order Order) string {
	if order == NewestFirst {
		return `
    SELECT id, data
    FROM documents
    WHERE collection = $1 AND data @> $2::jsonb
    ORDER BY created_at DESC, id DESC
    LIMIT $3 OFFSET $4
  `
	}
	return `
    SELECT id, data
    FROM documents
    WHERE collection = $1 AND data @> $2::jsonb
    ORDER BY created_at, id
    LIMIT $3 OFFSET $4
  `
}

func (p *Postgres) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := p.Create(ctx, collection, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Set(ctx context.Context, collection, id string, doc any) error {
	return apply(ctx, p.pool, Write{Op: OpSet, Collection: collection, ID: id, Doc: doc})
}

func (p *Postgres) Create(ctx context.Context, collection, id string, doc any) error {
	return apply(ctx, p.pool, Write{Op: OpCreate, Collection: collection, ID: id, Doc: doc})
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return apply(ctx, p.pool, Write{Op: OpUpdate, Collection: collection, ID: id, Fields: fields})
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return err
}

func (p *Postgres) Batch(ctx context.Context, writes []Write) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, w := range writes {
		if err := apply(ctx, tx, w); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func apply(ctx context.Context, q DBTX, w Write) error {
	switch w.Op {
	case OpSet:
		data, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
		}
		_, err = q.Exec(ctx, `
    INSERT INTO documents (collection, id, data)
    VALUES ($1, $2, $3::jsonb)
    ON CONFLICT (collection, id) DO UPDATE
    SET data = EXCLUDED.data, updated_at = now()
  `, w.Collection, w.ID, data)
		return err

	case OpCreate:
		data, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
		}
		_, err = q.Exec(ctx, `
    INSERT INTO documents (collection, id, data)
    VALUES ($1, $2, $3::jsonb)
  `, w.Collection, w.ID, data)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrAlreadyExists)
		}
		return err

	case OpUpdate:
		patch, err := json.Marshal(w.Fields)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
		}
		tag, err := q.Exec(ctx, `
    UPDATE documents
    SET data = data || $3::jsonb, updated_at = now()
    WHERE collection = $1 AND id = $2
  `, w.Collection, w.ID, patch)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
		return nil
	}
	return fmt.Errorf("unknown write op %d", w.Op)
}
