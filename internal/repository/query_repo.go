package repository

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/yuhao-w/deepquery/internal/domain"
)

// QueryRepository persists query exchange records.
type QueryRepository struct {
	db *DB
}

// NewQueryRepository creates a new query repository.
func NewQueryRepository(db *DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// Create inserts a finished query record.
func (r *QueryRepository) Create(record *domain.QueryRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	_, err := r.db.Exec(`
		INSERT INTO query_records (id, query, status, answer, error, document_count, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Query, record.Status, record.Answer, record.Error,
		record.DocumentCount, record.CreatedAt, record.CompletedAt)

	return err
}

// Get retrieves a record by ID. Returns nil when no record exists.
func (r *QueryRepository) Get(id string) (*domain.QueryRecord, error) {
	record := &domain.QueryRecord{}
	var answer, errText sql.NullString

	err := r.db.QueryRow(`
		SELECT id, query, status, answer, error, document_count, created_at, completed_at
		FROM query_records WHERE id = ?
	`, id).Scan(&record.ID, &record.Query, &record.Status, &answer, &errText,
		&record.DocumentCount, &record.CreatedAt, &record.CompletedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record.Answer = answer.String
	record.Error = errText.String
	return record, nil
}

// List returns the most recent records, newest first.
func (r *QueryRepository) List(limit int) ([]*domain.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, query, status, answer, error, document_count, created_at, completed_at
		FROM query_records
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.QueryRecord
	for rows.Next() {
		record := &domain.QueryRecord{}
		var answer, errText sql.NullString

		if err := rows.Scan(&record.ID, &record.Query, &record.Status, &answer, &errText,
			&record.DocumentCount, &record.CreatedAt, &record.CompletedAt); err != nil {
			return nil, err
		}

		record.Answer = answer.String
		record.Error = errText.String
		records = append(records, record)
	}

	return records, rows.Err()
}
