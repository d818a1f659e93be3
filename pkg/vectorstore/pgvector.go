package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

type PgvectorOptions struct {
	ConnString string
	// Table may be schema-qualified, e.g. rag.embeddings. Defaults to the public schema.
	Table      string
	Dimensions int
}

// Pgvector is a Store backed by a PostgreSQL table with a pgvector column.
type Pgvector struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	table  string // sanitized identifier
	opts   PgvectorOptions
}

// NewPgvector creates the vector extension and the embeddings table if needed, and returns
// a pool whose connections know the vector type.
func NewPgvector(ctx context.Context, opts PgvectorOptions, logger *zap.Logger) (*Pgvector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// the extension must exist before pooled connections can register its types
	conn, err := pgx.Connect(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	schema, table := splitSchemaTableName(opts.Table)
	p := &Pgvector{
		pool:   pool,
		opts:   opts,
		table:  pgx.Identifier{schema, table}.Sanitize(),
		logger: logger.With(zap.String("table", opts.Table)),
	}
	if err := p.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pgvector) ensureTable(ctx context.Context) error {
	schema, table := splitSchemaTableName(p.opts.Table)

	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1
			AND table_name = $2
		)`, schema, table).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if table exists: %w", err)
	}
	if exists {
		return nil
	}

	p.logger.Info("table does not exist, creating it", zap.Int("dimensions", p.opts.Dimensions))
	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			page INTEGER NOT NULL DEFAULT 0,
			embedding vector(%d) NOT NULL
		)`, p.table, p.opts.Dimensions))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (p *Pgvector) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, source, page, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content, source = EXCLUDED.source,
			page = EXCLUDED.page, embedding = EXCLUDED.embedding`, p.table)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ID, r.Content, r.Source, r.Page, pgvector.NewVector(r.Embedding))
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", r.ID, err)
		}
	}
	return nil
}

func (p *Pgvector) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1)", p.table), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan ids: %w", err)
	}
	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (p *Pgvector) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (p *Pgvector) Search(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, content, source, page, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`, p.table), pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		err := row.Scan(&m.ID, &m.Content, &m.Source, &m.Page, &m.Distance)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return matches, nil
}

func (p *Pgvector) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", p.table)); err != nil {
		return fmt.Errorf("failed to truncate: %w", err)
	}
	p.logger.Info("cleared vector store")
	return nil
}

func (p *Pgvector) Close() error {
	p.pool.Close()
	return nil
}

// splitSchemaTableName splits a schema-qualified table name into schema and table parts
func splitSchemaTableName(tableName string) (string, string) {
	if schema, table, ok := strings.Cut(tableName, "."); ok {
		return schema, table
	}
	return "public", tableName
}
