package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/taskbot/internal/tasks"
)

// PostgresStore keeps the task document as a single jsonb row.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection. Migrations must already be applied.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Name identifies the backend in logs.
func (p *PostgresStore) Name() string { return "postgres" }

type documentRow struct {
	Document string `db:"document"`
}

// Load reads the stored document. No row yields an empty document.
func (p *PostgresStore) Load(ctx context.Context) (tasks.Document, error) {
	var row documentRow
	err := p.db.GetContext(ctx, &row, `SELECT document FROM task_store WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task_store: %w", err)
	}

	var doc tasks.Document
	if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
		return nil, fmt.Errorf("decode task_store: %w", err)
	}
	if doc == nil {
		doc = tasks.Document{}
	}
	return doc, nil
}

// Save replaces the stored document in one statement.
func (p *PostgresStore) Save(ctx context.Context, doc tasks.Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = p.db.NamedExecContext(ctx, `
		INSERT INTO task_store (id, document, updated_at)
		VALUES (1, :document, now())
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		documentRow{Document: string(b)},
	)
	if err != nil {
		return fmt.Errorf("upsert task_store: %w", err)
	}
	return nil
}
