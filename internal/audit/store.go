package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/docuvec/docuvec/internal/db"
)

// Store persists audit entries. Entries are append-only; there is no
// update or delete path.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record appends one entry. oldVal and newVal are marshalled to JSON when
// non-nil.
func (s *Store) Record(ctx context.Context, documentID string, action Action, oldVal, newVal any, actor string) error {
	if actor == "" {
		actor = "system"
	}

	oldJSON, err := marshalSnapshot(oldVal)
	if err != nil {
		return fmt.Errorf("marshalling old values: %w", err)
	}
	newJSON, err := marshalSnapshot(newVal)
	if err != nil {
		return fmt.Errorf("marshalling new values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, document_id, action, old_values, new_values, actor_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), documentID, string(action), oldJSON, newJSON, actor)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first, plus the total
// match count for pagination.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Entry, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if filter.DocumentID != "" {
		where += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, string(filter.Action))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting audit entries: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, document_id, action, old_values, new_values, actor_id, created_at
		FROM audit_entries ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			oldVals   sql.NullString
			newVals   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Action, &oldVals, &newVals, &e.Actor, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.OldValues = oldVals.String
		e.NewValues = newVals.String
		if t, err := time.Parse(time.DateTime, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Statistics aggregates the trail: entry counts per action, how many
// documents were ever touched, and the time of the latest entry.
func (s *Store) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{ByAction: map[string]int{}}

	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM audit_entries GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("aggregating audit actions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scanning action count: %w", err)
		}
		stats.ByAction[action] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT document_id) FROM audit_entries`).Scan(&stats.Documents); err != nil {
		return nil, fmt.Errorf("counting audited documents: %w", err)
	}

	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM audit_entries`).Scan(&last); err != nil {
		return nil, fmt.Errorf("finding latest audit entry: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(time.DateTime, last.String); err == nil {
			stats.LastActivityAt = &t
		}
	}
	return stats, nil
}

func marshalSnapshot(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
