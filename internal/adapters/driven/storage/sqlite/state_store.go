package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragsync/internal/core/domain"
	"github.com/custodia-labs/ragsync/internal/core/ports/driven"
)

// stateStore implements driven.StateStore.
type stateStore struct {
	store *Store
}

var _ driven.StateStore = (*stateStore)(nil)

const stateColumns = `document_id, source_type, content_hash,
	last_processed_at, last_content_update_at, last_seen_at,
	file_name, url, rag_vector_ids, rag_namespace, rag_ingestion_status,
	rag_retry_count, rag_error_message, sections_total, sections_processed`

// Get retrieves per-document ingestion state by document ID.
func (s *stateStore) Get(ctx context.Context, documentID string) (*domain.DocumentState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM document_ingestion_state WHERE document_id = ?
	`, documentID)

	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return state, nil
}

// Save creates or updates a state row.
func (s *stateStore) Save(ctx context.Context, state *domain.DocumentState) error {
	vectorIDs := state.VectorIDs
	if vectorIDs == nil {
		vectorIDs = []string{}
	}
	vectorJSON, err := json.Marshal(vectorIDs)
	if err != nil {
		return fmt.Errorf("marshalling vector IDs: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO document_ingestion_state (
			document_id, source_type, content_hash,
			last_processed_at, last_content_update_at, last_seen_at,
			file_name, url, rag_vector_ids, rag_namespace, rag_ingestion_status,
			rag_retry_count, rag_error_message, sections_total, sections_processed
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			source_type = excluded.source_type,
			content_hash = excluded.content_hash,
			last_processed_at = excluded.last_processed_at,
			last_content_update_at = excluded.last_content_update_at,
			last_seen_at = excluded.last_seen_at,
			file_name = excluded.file_name,
			url = excluded.url,
			rag_vector_ids = excluded.rag_vector_ids,
			rag_namespace = excluded.rag_namespace,
			rag_ingestion_status = excluded.rag_ingestion_status,
			rag_retry_count = excluded.rag_retry_count,
			rag_error_message = excluded.rag_error_message,
			sections_total = excluded.sections_total,
			sections_processed = excluded.sections_processed
	`,
		state.DocumentID, string(state.SourceType), state.ContentHash,
		formatNullableTime(state.LastProcessedAt),
		formatNullableTime(state.LastContentUpdateAt),
		formatNullableTime(state.LastSeenAt),
		nullString(state.FileName), nullString(state.URL),
		string(vectorJSON), state.Namespace, string(state.Status),
		state.RetryCount, nullString(state.ErrorMessage),
		state.SectionsTotal, state.SectionsProcessed)

	if err != nil {
		return fmt.Errorf("saving document state: %w", err)
	}
	return nil
}

// TouchLastSeen updates last_seen_at for an existing row. Zero rows
// affected is not an error: the document has no state yet.
func (s *stateStore) TouchLastSeen(ctx context.Context, documentID string, seenAt time.Time) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE document_ingestion_state SET last_seen_at = ? WHERE document_id = ?
	`, formatNullableTime(seenAt), documentID)
	if err != nil {
		return fmt.Errorf("updating last_seen_at: %w", err)
	}
	return nil
}

// List returns all state rows.
func (s *stateStore) List(ctx context.Context) ([]domain.DocumentState, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+stateColumns+`
		FROM document_ingestion_state
		ORDER BY document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying document states: %w", err)
	}
	defer rows.Close()

	var states []domain.DocumentState //nolint:prealloc // size unknown from query
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document states: %w", err)
	}

	return states, nil
}

// ResetPermanentFailures moves permanently_failed documents back to
// pending with a zero retry count.
func (s *stateStore) ResetPermanentFailures(ctx context.Context) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE document_ingestion_state
		SET rag_ingestion_status = ?, rag_retry_count = 0, rag_error_message = NULL
		WHERE rag_ingestion_status = ?
	`, string(domain.StatusPending), string(domain.StatusPermanentlyFailed))
	if err != nil {
		return 0, fmt.Errorf("resetting permanent failures: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting reset rows: %w", err)
	}
	return int(n), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*domain.DocumentState, error) {
	var (
		state                 domain.DocumentState
		sourceType, status    string
		lastProcessed         sql.NullString
		lastContentUpdate     sql.NullString
		lastSeen              sql.NullString
		fileName, url, errMsg sql.NullString
		vectorJSON            string
	)

	if err := row.Scan(&state.DocumentID, &sourceType, &state.ContentHash,
		&lastProcessed, &lastContentUpdate, &lastSeen,
		&fileName, &url, &vectorJSON, &state.Namespace, &status,
		&state.RetryCount, &errMsg,
		&state.SectionsTotal, &state.SectionsProcessed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document state: %w", err)
	}

	if err := json.Unmarshal([]byte(vectorJSON), &state.VectorIDs); err != nil {
		return nil, fmt.Errorf("unmarshaling vector IDs: %w", err)
	}

	state.SourceType = domain.SourceType(sourceType)
	state.Status = domain.IngestionStatus(status)
	state.LastProcessedAt = parseNullableTime(lastProcessed)
	state.LastContentUpdateAt = parseNullableTime(lastContentUpdate)
	state.LastSeenAt = parseNullableTime(lastSeen)
	state.FileName = fileName.String
	state.URL = url.String
	state.ErrorMessage = errMsg.String

	return &state, nil
}
