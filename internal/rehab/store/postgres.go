package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"certflow/internal/rehab"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/tx"
)

// PostgresRecordStore persists the rehabilitation audit trail in
// PostgreSQL. The rehabilitation_records table is insert-only: no UPDATE or
// DELETE is ever issued against it.
type PostgresRecordStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit record store.
func NewPostgres(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Append(ctx context.Context, record *rehab.Record) error {
	exec := s.db.ExecContext
	if t, ok := tx.From(ctx); ok {
		exec = t.ExecContext
	}
	_, err := exec(ctx, `
		INSERT INTO rehabilitation_records (id, case_id, stage, recorded_at, outcome, actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ID.String(), record.CaseID.String(), record.Stage.String(),
		record.Timestamp, string(record.Outcome), record.Actor, record.Reason)
	if err != nil {
		return fmt.Errorf("append rehabilitation record: %w", err)
	}
	return nil
}

func (s *PostgresRecordStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]*rehab.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, stage, recorded_at, outcome, actor, reason
		FROM rehabilitation_records
		WHERE case_id = $1
		ORDER BY recorded_at, id
	`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("list rehabilitation records: %w", err)
	}
	defer rows.Close()

	var out []*rehab.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rehabilitation records: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*rehab.Record, error) {
	var record rehab.Record
	var rawID, rawCaseID, stage, outcome string
	if err := rows.Scan(&rawID, &rawCaseID, &stage, &record.Timestamp, &outcome, &record.Actor, &record.Reason); err != nil {
		return nil, fmt.Errorf("scan rehabilitation record: %w", err)
	}

	recordID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored record id %q is invalid: %w", rawID, err)
	}
	caseID, err := id.ParseCaseID(rawCaseID)
	if err != nil {
		return nil, fmt.Errorf("stored case id %q is invalid: %w", rawCaseID, err)
	}

	record.ID = recordID
	record.CaseID = caseID
	record.Stage = id.Stage(stage)
	record.Outcome = rehab.Outcome(outcome)
	return &record, nil
}
