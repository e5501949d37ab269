package candidateinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Abraxas-365/applyflow/pkg/kernel"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// PostgresRepository keeps each record as a JSONB document next to the
// columns used for keys, search and similarity.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var (
	_ candidate.Repository  = (*PostgresRepository)(nil)
	_ candidate.VectorIndex = (*PostgresRepository)(nil)
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS candidates (
	id             UUID PRIMARY KEY,
	application_id TEXT UNIQUE,
	first_name     TEXT NOT NULL DEFAULT '',
	last_name      TEXT NOT NULL DEFAULT '',
	document       JSONB NOT NULL,
	embedding      vector(1536),
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS candidates_name_key
	ON candidates (first_name, last_name) WHERE application_id IS NULL;
CREATE INDEX IF NOT EXISTS candidates_first_name_idx ON candidates (lower(first_name));
CREATE INDEX IF NOT EXISTS candidates_last_name_idx ON candidates (lower(last_name));
CREATE INDEX IF NOT EXISTS candidates_full_name_idx ON candidates (lower(first_name), lower(last_name));
`

// EnsureSchema creates the table, indexes and the vector extension.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

type candidateRow struct {
	ID       string `db:"id"`
	Document []byte `db:"document"`
}

func (row candidateRow) toDomain() (candidate.Candidate, error) {
	var c candidate.Candidate
	if err := json.Unmarshal(row.Document, &c); err != nil {
		return c, fmt.Errorf("decode document %s: %w", row.ID, err)
	}
	c.ID = kernel.CandidateID(row.ID)
	return c, nil
}

func rowsToDomain(rows []candidateRow) ([]candidate.Candidate, error) {
	out := make([]candidate.Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func encodeDocument(c *candidate.Candidate) ([]byte, error) {
	cp := *c
	cp.ID = ""
	return json.Marshal(cp)
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const upsertByApplicationID = `
	INSERT INTO candidates (id, application_id, first_name, last_name, document, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (application_id) DO UPDATE SET
		first_name = EXCLUDED.first_name,
		last_name  = EXCLUDED.last_name,
		document   = EXCLUDED.document,
		updated_at = EXCLUDED.updated_at
	RETURNING id
`

// The name fallback matches any record with the same names, keyed or not,
// and keeps the stored application_id of the record it replaces.
const upsertByName = `
	WITH existing AS (
		SELECT id FROM candidates
		WHERE first_name = $3::text AND last_name = $4::text
		ORDER BY created_at
		LIMIT 1
	), updated AS (
		UPDATE candidates AS c SET
			document = CASE
				WHEN c.application_id IS NULL THEN $5::jsonb
				ELSE $5::jsonb || jsonb_build_object('application_id', c.application_id)
			END,
			updated_at = $6::timestamptz
		FROM existing
		WHERE c.id = existing.id
		RETURNING c.id
	), inserted AS (
		INSERT INTO candidates (id, application_id, first_name, last_name, document, updated_at)
		SELECT $1::uuid, $2::text, $3::text, $4::text, $5::jsonb, $6::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM existing)
		RETURNING id
	)
	SELECT id FROM updated
	UNION ALL
	SELECT id FROM inserted
`

// Upsert relies on ON CONFLICT against the application_id unique
// constraint. Without an external id it updates the first record with the
// same names, or inserts one.
func (r *PostgresRepository) Upsert(ctx context.Context, c *candidate.Candidate, applicationID kernel.ApplicationID) (kernel.CandidateID, error) {
	if !applicationID.IsEmpty() {
		c.ApplicationID = applicationID
	}
	c.Touch()

	doc, err := encodeDocument(c)
	if err != nil {
		return "", candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", "encode")
	}

	query := upsertByApplicationID
	if !c.Key().ByApplicationID() {
		query = upsertByName
	}

	var id string
	err = r.db.QueryRowContext(
		ctx,
		query,
		uuid.New().String(),
		nullIfEmpty(c.ApplicationID.String()),
		c.FirstName,
		c.LastName,
		doc,
		c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return "", classify(err, "upsert")
	}

	c.ID = kernel.CandidateID(id)
	return c.ID, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, where string, arg any) (*candidate.Candidate, error) {
	var row candidateRow
	err := r.db.GetContext(ctx, &row, `SELECT id, document FROM candidates WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, candidate.ErrCandidateNotFound()
	}
	if err != nil {
		return nil, classify(err, "get")
	}
	c, err := row.toDomain()
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err)
	}
	return &c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id kernel.CandidateID) (*candidate.Candidate, error) {
	if _, err := uuid.Parse(id.String()); err != nil {
		return nil, candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	c, err := r.getOne(ctx, "id = $1", id.String())
	if candidate.IsNotFound(err) {
		return nil, candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	return c, err
}

func (r *PostgresRepository) FindByApplicationID(ctx context.Context, id kernel.ApplicationID) (*candidate.Candidate, error) {
	c, err := r.getOne(ctx, "application_id = $1", id.String())
	if candidate.IsNotFound(err) {
		return nil, candidate.ErrCandidateNotFound().WithDetail("application_id", id.String())
	}
	return c, err
}

func (r *PostgresRepository) ExistsByApplicationID(ctx context.Context, id kernel.ApplicationID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM candidates WHERE application_id = $1)`, id.String())
	if err != nil {
		return false, classify(err, "exists")
	}
	return exists, nil
}

// InsertRaw stores an exported document. A valid UUID in _id is kept as the
// row id so re-imports collide on the primary key.
func (r *PostgresRepository) InsertRaw(ctx context.Context, doc map[string]any) error {
	id := uuid.New().String()
	if raw, ok := doc["_id"]; ok {
		if parsed, err := uuid.Parse(fmt.Sprint(raw)); err == nil {
			id = parsed.String()
		}
	}

	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != "_id" {
			body[k] = v
		}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err).WithDetail("op", "encode")
	}

	str := func(k string) string {
		if s, ok := doc[k].(string); ok {
			return s
		}
		return ""
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO candidates (id, application_id, first_name, last_name, document)
		VALUES ($1, $2, $3, $4, $5)
	`, id, nullIfEmpty(str("application_id")), str("first_name"), str("last_name"), data)
	return classify(err, "insert")
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT count(*) FROM candidates`); err != nil {
		return 0, classify(err, "count")
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]candidate.Candidate, error) {
	var rows []candidateRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, document FROM candidates ORDER BY created_at`); err != nil {
		return nil, classify(err, "list")
	}
	out, err := rowsToDomain(rows)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err)
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(term string) string {
	if term == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *PostgresRepository) Search(ctx context.Context, req candidate.SearchCandidatesRequest) ([]candidate.Candidate, error) {
	req = req.Normalize()
	if req.IsEmpty() {
		return nil, candidate.ErrSearchCriteriaRequired()
	}

	query := `
		SELECT id, document FROM candidates
		WHERE ($1 = '' OR first_name ILIKE $1)
		  AND ($2 = '' OR last_name ILIKE $2)
		ORDER BY last_name, first_name
	`
	var rows []candidateRow
	if err := r.db.SelectContext(ctx, &rows, query, containsPattern(req.FirstName), containsPattern(req.LastName)); err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
	}
	out, err := rowsToDomain(rows)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
	}
	return out, nil
}

func (r *PostgresRepository) Sample(ctx context.Context, limit int) ([]candidate.Candidate, error) {
	var rows []candidateRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, document FROM candidates ORDER BY created_at LIMIT $1`, limit); err != nil {
		return nil, classify(err, "sample")
	}
	out, err := rowsToDomain(rows)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeStoreFailed, err)
	}
	return out, nil
}

func (r *PostgresRepository) SaveEmbedding(ctx context.Context, id kernel.CandidateID, embedding kernel.Embedding) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE candidates SET embedding = $2 WHERE id = $1`,
		id.String(), pgvector.NewVector(embedding),
	)
	if err != nil {
		return classify(err, "save_embedding")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return candidate.ErrCandidateNotFound().WithDetail("id", id.String())
	}
	return nil
}

// Similar orders records by cosine distance to embedding.
func (r *PostgresRepository) Similar(ctx context.Context, embedding kernel.Embedding, limit int) ([]candidate.ScoredCandidate, error) {
	type scoredRow struct {
		candidateRow
		Distance float64 `db:"distance"`
	}

	var rows []scoredRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, document, embedding <=> $1 AS distance
		FROM candidates
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
	}

	out := make([]candidate.ScoredCandidate, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSearchFailed, err)
		}
		out = append(out, candidate.ScoredCandidate{Candidate: c, Distance: row.Distance})
	}
	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return candidate.ErrRegistry.NewWithCause(candidate.CodeStoreUnavailable, err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
