package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freelyhq/freely-api/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const documentColumns = `id, owner_id, kind, subtype, client_name, status, input_data, results, version_ptr, revision, created_at, updated_at`

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	inputJSON, err := json.Marshal(doc.InputData)
	if err != nil {
		return fmt.Errorf("marshal input data: %w", err)
	}
	var resultsJSON []byte
	if doc.Results != nil {
		resultsJSON, err = json.Marshal(doc.Results)
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, owner_id, kind, subtype, client_name, status, input_data, results, version_ptr, revision, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		doc.ID, doc.OwnerID, doc.Kind, doc.Subtype, doc.ClientName, doc.Status,
		inputJSON, resultsJSON, doc.VersionPtr, doc.Revision, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID, ownerID string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]*models.Document, int, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{filter.OwnerID}
	argIdx := 2

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, filter.Kind)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM documents WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT `+documentColumns+` FROM documents WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id uuid.UUID, ownerID string) error {
	// Version entries go with the document via ON DELETE CASCADE.
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Forward-only transitions, except completed -> processing which re-enters the
// pipeline when a proposal is regenerated with change instructions.
var validTransitions = map[string][]string{
	models.StatusPending:    {models.StatusProcessing, models.StatusFailed},
	models.StatusProcessing: {models.StatusCompleted, models.StatusFailed},
	models.StatusCompleted:  {models.StatusProcessing},
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status string, opts ...DocumentUpdateOption) error {
	params := &DocumentUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get document status: %w", err)
	}

	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE documents SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if params.Results != nil {
		resultsJSON, err := json.Marshal(params.Results)
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		query += fmt.Sprintf(", results = $%d, revision = revision + 1", argIdx)
		args = append(args, resultsJSON)
		argIdx++
	} else if params.ErrorMessage != nil {
		diagJSON, err := json.Marshal(map[string]any{"error": *params.ErrorMessage})
		if err != nil {
			return fmt.Errorf("marshal error payload: %w", err)
		}
		query += fmt.Sprintf(", results = $%d", argIdx)
		args = append(args, diagJSON)
		argIdx++
	}
	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// --- Versions ---

func (s *PostgresStore) SetProposalContent(ctx context.Context, id uuid.UUID, content string, versionPtr int, expectedRevision int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results, revision, _, err := lockDocumentResults(ctx, tx, id, expectedRevision)
	if err != nil {
		return err
	}

	results["formatted_proposal"] = content
	results["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE documents SET results = $2, version_ptr = $3, revision = $4, updated_at = NOW() WHERE id = $1`,
		id, resultsJSON, versionPtr, revision+1)
	if err != nil {
		return fmt.Errorf("set proposal content: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) AppendVersion(ctx context.Context, id uuid.UUID, content string, expectedRevision int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	results, revision, ptr, err := lockDocumentResults(ctx, tx, id, expectedRevision)
	if err != nil {
		return 0, err
	}

	// Appending while the pointer sits mid-history discards the redo tail.
	if _, err := tx.Exec(ctx,
		`DELETE FROM document_versions WHERE document_id = $1 AND idx > $2`, id, ptr); err != nil {
		return 0, fmt.Errorf("truncate versions: %w", err)
	}

	newIdx := ptr + 1
	if _, err := tx.Exec(ctx,
		`INSERT INTO document_versions (document_id, idx, content, created_at) VALUES ($1, $2, $3, NOW())`,
		id, newIdx, content); err != nil {
		return 0, fmt.Errorf("append version: %w", err)
	}

	results["formatted_proposal"] = content
	results["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return 0, fmt.Errorf("marshal results: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE documents SET results = $2, version_ptr = $3, revision = $4, updated_at = NOW() WHERE id = $1`,
		id, resultsJSON, newIdx, revision+1); err != nil {
		return 0, fmt.Errorf("advance version pointer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return newIdx, nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, id uuid.UUID) ([]*models.VersionEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document_id, idx, content, created_at FROM document_versions
		 WHERE document_id = $1 ORDER BY idx ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var entries []*models.VersionEntry
	for rows.Next() {
		var v models.VersionEntry
		if err := rows.Scan(&v.DocumentID, &v.Index, &v.Content, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		entries = append(entries, &v)
	}
	return entries, rows.Err()
}

// lockDocumentResults reads results, revision, and the version pointer under
// FOR UPDATE, enforcing the optimistic concurrency token when expectedRevision
// is non-negative.
func lockDocumentResults(ctx context.Context, tx pgx.Tx, id uuid.UUID, expectedRevision int) (map[string]any, int, int, error) {
	var resultsJSON []byte
	var revision, ptr int
	err := tx.QueryRow(ctx,
		`SELECT results, revision, version_ptr FROM documents WHERE id = $1 FOR UPDATE`, id).Scan(&resultsJSON, &revision, &ptr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, 0, fmt.Errorf("lock document: %w", err)
	}

	if expectedRevision >= 0 && revision != expectedRevision {
		return nil, 0, 0, ErrRevisionConflict
	}

	results := map[string]any{}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &results); err != nil {
			return nil, 0, 0, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return results, revision, ptr, nil
}

// --- Access Tokens ---

const accessTokenColumns = `id, owner_id, name, token_hash, token_prefix, last_used_at, revoked_at, created_at, updated_at`

func (s *PostgresStore) CreateAccessToken(ctx context.Context, token *models.AccessToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO access_tokens (id, owner_id, name, token_hash, token_prefix, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.OwnerID, token.Name, token.TokenHash, token.TokenPrefix,
		token.CreatedAt, token.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccessTokensByPrefix(ctx context.Context, prefix string) ([]*models.AccessToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens
		 WHERE token_prefix = $1 AND revoked_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get access tokens by prefix: %w", err)
	}
	defer rows.Close()
	return collectAccessTokens(rows)
}

func (s *PostgresStore) ListAccessTokens(ctx context.Context, ownerID string) ([]*models.AccessToken, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens
		 WHERE owner_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list access tokens: %w", err)
	}
	defer rows.Close()
	return collectAccessTokens(rows)
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE access_tokens SET revoked_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND revoked_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAccessTokenLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE access_tokens SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update access token last used: %w", err)
	}
	return nil
}

func collectAccessTokens(rows pgx.Rows) ([]*models.AccessToken, error) {
	var tokens []*models.AccessToken
	for rows.Next() {
		var t models.AccessToken
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.TokenHash, &t.TokenPrefix,
			&t.LastUsedAt, &t.RevokedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan access token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// --- helpers ---

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	var inputJSON, resultsJSON []byte
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Kind, &d.Subtype, &d.ClientName, &d.Status,
		&inputJSON, &resultsJSON, &d.VersionPtr, &d.Revision, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &d.InputData); err != nil {
			return nil, fmt.Errorf("unmarshal input data: %w", err)
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &d.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return &d, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
