package document

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuvec/docuvec/internal/db"
)

// Store provides persistence for documents and their fragments.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new document in status queued. If doc.ID is empty a UUID
// is generated. The write is durable before Create returns.
func (s *Store) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.Status == "" {
		doc.Status = StatusQueued
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, content_kind, size_bytes, status, uploaded_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, string(doc.ContentKind), doc.SizeBytes, string(doc.Status),
		nullString(doc.UploadedBy),
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// Get retrieves a single document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE id = ?`, id)
	return scanDocument(row)
}

// GetByIDs retrieves the documents with the given ids, keyed by id.
// Missing ids are simply absent from the result.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]*Document, error) {
	if len(ids) == 0 {
		return map[string]*Document{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, selectDocument+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// List returns documents matching the filter plus the total matching count.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Document, int, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DocType != "" {
		clauses = append(clauses, "doc_type = ?")
		args = append(args, filter.DocType)
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "doc_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "doc_date <= ?")
		args = append(args, filter.DateTo)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	query := selectDocument + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

// SetProcessing moves a document from queued (or a failed attempt) into
// processing. Completed documents are never moved back.
func (s *Store) SetProcessing(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_detail = NULL, updated_at = datetime('now')
		WHERE id = ? AND status != ?`,
		string(StatusProcessing), id, string(StatusCompleted))
	if err != nil {
		return fmt.Errorf("marking document processing: %w", err)
	}
	return nil
}

// MarkError records a terminal failure on the document.
func (s *Store) MarkError(ctx context.Context, id, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_detail = ?, processed_at = datetime('now'), updated_at = datetime('now')
		WHERE id = ?`,
		string(StatusError), detail, id)
	if err != nil {
		return fmt.Errorf("marking document error: %w", err)
	}
	return nil
}

// PersistCompleted writes the pipeline's terminal result in one transaction:
// storage locator, page count, classification metadata, all fragments, and
// the completed status. Fragments from an earlier aborted attempt are
// replaced, which keeps positions contiguous from zero.
func (s *Store) PersistCompleted(ctx context.Context, id, storageURL, objectKey string, numPages *int, md Metadata, fragments []Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	entities, err := marshalEntities(md.Entities)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET storage_url = ?, object_key = ?, num_pages = ?,
		    doc_type = ?, topic = ?, doc_date = ?, entities = ?, summary = ?,
		    status = ?, error_detail = NULL,
		    processed_at = datetime('now'), updated_at = datetime('now')
		WHERE id = ?`,
		storageURL, objectKey, nullInt(numPages),
		nullString(md.DocType), nullString(md.Topic), nullString(md.DocDate), entities, nullString(md.Summary),
		string(StatusCompleted), id)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fragments WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("clearing stale fragments: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fragments (id, document_id, content, position, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing fragment insert: %w", err)
	}
	defer stmt.Close()

	for i := range fragments {
		f := &fragments[i]
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		f.DocumentID = id
		if _, err := stmt.ExecContext(ctx, f.ID, id, f.Content, f.Position, EncodeVector(f.Embedding)); err != nil {
			return fmt.Errorf("inserting fragment %d: %w", f.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document completion: %w", err)
	}
	return nil
}

// UpdateMetadata overwrites the editable classification fields and returns
// the previous values for auditing.
func (s *Store) UpdateMetadata(ctx context.Context, id string, md Metadata) (*Document, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	entities, err := marshalEntities(md.Entities)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE documents
		SET doc_type = ?, topic = ?, doc_date = ?, entities = ?, summary = ?, updated_at = datetime('now')
		WHERE id = ?`,
		nullString(md.DocType), nullString(md.Topic), nullString(md.DocDate), entities, nullString(md.Summary), id)
	if err != nil {
		return nil, fmt.Errorf("updating document metadata: %w", err)
	}
	return old, nil
}

// Delete removes the document; fragments cascade at the database level.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Fragments returns the document's fragments ordered by position.
func (s *Store) Fragments(ctx context.Context, documentID string) ([]Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding, created_at
		FROM fragments WHERE document_id = ? ORDER BY position`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var out []Fragment
	for rows.Next() {
		var (
			f   Fragment
			raw []byte
			ts  string
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Content, &f.Position, &raw, &ts); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}
		f.Embedding = DecodeVector(raw)
		f.CreatedAt, _ = time.Parse(time.DateTime, ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

const selectDocument = `
	SELECT id, filename, storage_url, object_key, content_kind, size_bytes, num_pages,
	       doc_type, topic, doc_date, entities, summary,
	       status, error_detail, uploaded_by, created_at, updated_at, processed_at
	FROM documents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc                     Document
		kind, status            string
		numPages                sql.NullInt64
		docType, topic, docDate sql.NullString
		entities, summary       sql.NullString
		errorDetail, uploadedBy sql.NullString
		createdAt, updatedAt    string
		processedAt             sql.NullString
	)

	err := row.Scan(&doc.ID, &doc.Filename, &doc.StorageURL, &doc.ObjectKey, &kind, &doc.SizeBytes, &numPages,
		&docType, &topic, &docDate, &entities, &summary,
		&status, &errorDetail, &uploadedBy, &createdAt, &updatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	doc.ContentKind = ContentKind(kind)
	doc.Status = Status(status)
	if numPages.Valid {
		n := int(numPages.Int64)
		doc.NumPages = &n
	}
	doc.Metadata.DocType = strPtr(docType)
	doc.Metadata.Topic = strPtr(topic)
	doc.Metadata.DocDate = strPtr(docDate)
	doc.Metadata.Summary = strPtr(summary)
	if entities.Valid && entities.String != "" {
		if err := json.Unmarshal([]byte(entities.String), &doc.Metadata.Entities); err != nil {
			return nil, fmt.Errorf("decoding entities: %w", err)
		}
	}
	doc.ErrorDetail = strPtr(errorDetail)
	doc.UploadedBy = strPtr(uploadedBy)
	doc.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	if processedAt.Valid {
		t, _ := time.Parse(time.DateTime, processedAt.String)
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

// EncodeVector packs an embedding into little-endian float32 bytes for BLOB
// storage.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func marshalEntities(entities []string) (sql.NullString, error) {
	if entities == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling entities: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
