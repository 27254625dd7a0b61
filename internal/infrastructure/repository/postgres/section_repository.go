package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pmwiki/backend/internal/core/domain"
)

// SectionRepository reads and maintains document_sections. The serving path
// only reads; MarkEmbedded and EnsureSchema belong to ingestion.
type SectionRepository struct {
	db *sql.DB
}

func NewSectionRepository(db *sql.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SectionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_sections (
	id TEXT PRIMARY KEY,
	standard TEXT NOT NULL,
	section_number TEXT NOT NULL,
	section_title TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 0,
	page_start INTEGER,
	page_end INTEGER,
	parent_chain JSONB NOT NULL DEFAULT '[]'::jsonb,
	content_cleaned TEXT NOT NULL,
	content_original TEXT NOT NULL,
	citation_key TEXT NOT NULL UNIQUE,
	embedding_model TEXT,
	embedding_created_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_document_sections_standard ON document_sections(standard);
CREATE INDEX IF NOT EXISTS idx_document_sections_pending_embedding
	ON document_sections(standard, section_number) WHERE embedding_created_at IS NULL;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const sectionColumns = `id, standard, section_number, section_title, level, page_start, page_end, parent_chain, content_cleaned, content_original, citation_key, embedding_model, embedding_created_at`

// FetchByIDs loads all requested sections in one round trip. Ids without a
// matching row are absent from the result, not an error.
func (r *SectionRepository) FetchByIDs(ctx context.Context, ids []string) (map[string]domain.Section, error) {
	if len(ids) == 0 {
		return map[string]domain.Section{}, nil
	}

	query := fmt.Sprintf(
		`SELECT %s FROM document_sections WHERE id IN (%s)`,
		sectionColumns, placeholders(len(ids)),
	)

	rows, err := r.db.QueryContext(ctx, query, idArgs(ids)...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMetadataLookup, "fetch sections by ids", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Section, len(ids))
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrMetadataLookup, "scan section", err)
		}
		out[section.ID] = section
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrMetadataLookup, "iterate sections", err)
	}
	return out, nil
}

func (r *SectionRepository) GetByID(ctx context.Context, id string) (*domain.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_sections WHERE id = $1`, sectionColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	section, err := scanSection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSectionNotFound, "get section", fmt.Errorf("id %s", id))
		}
		return nil, domain.WrapError(domain.ErrMetadataLookup, "get section", err)
	}
	return &section, nil
}

func (r *SectionRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]domain.Section, error) {
	if limit <= 0 {
		limit = 128
	}
	query := fmt.Sprintf(
		`SELECT %s FROM document_sections WHERE embedding_created_at IS NULL ORDER BY standard, section_number LIMIT $1`,
		sectionColumns,
	)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMetadataLookup, "list sections missing embeddings", err)
	}
	defer rows.Close()

	var out []domain.Section
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrMetadataLookup, "scan section", err)
		}
		out = append(out, section)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrMetadataLookup, "iterate sections", err)
	}
	return out, nil
}

func (r *SectionRepository) MarkEmbedded(ctx context.Context, ids []string, model string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, model, at)
	for _, id := range ids {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE document_sections SET embedding_model = $1, embedding_created_at = $2, updated_at = NOW() WHERE id IN (%s)`,
		placeholdersFrom(3, len(ids)),
	)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.WrapError(domain.ErrMetadataLookup, "mark sections embedded", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (domain.Section, error) {
	var (
		section        domain.Section
		standard       string
		pageStart      sql.NullInt64
		pageEnd        sql.NullInt64
		parentChainRaw []byte
		embedModel     sql.NullString
		embedCreatedAt sql.NullTime
	)

	err := row.Scan(
		&section.ID, &standard, &section.SectionNumber, &section.SectionTitle, &section.Level,
		&pageStart, &pageEnd, &parentChainRaw, &section.Content, &section.ContentOriginal,
		&section.CitationKey, &embedModel, &embedCreatedAt,
	)
	if err != nil {
		return domain.Section{}, err
	}

	section.Standard = domain.Standard(standard)
	section.PageStart = int(pageStart.Int64)
	section.PageEnd = int(pageEnd.Int64)
	section.EmbeddingModel = embedModel.String
	if embedCreatedAt.Valid {
		section.EmbeddingCreatedAt = embedCreatedAt.Time
	}
	if len(parentChainRaw) > 0 {
		if err := json.Unmarshal(parentChainRaw, &section.ParentChain); err != nil {
			return domain.Section{}, fmt.Errorf("unmarshal parent chain: %w", err)
		}
	}
	return section, nil
}

func placeholders(n int) string {
	return placeholdersFrom(1, n)
}

func placeholdersFrom(start, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ",")
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
