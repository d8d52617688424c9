package store

import (
	"context"
	"database/sql"
	"fmt"

	"certflow/internal/license"
	id "certflow/pkg/domain"
)

// PostgresLicenseStore persists issued licenses in PostgreSQL. The licenses
// table is insert-only; re-issuance adds rows rather than updating them.
type PostgresLicenseStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed license store.
func NewPostgres(db *sql.DB) *PostgresLicenseStore {
	return &PostgresLicenseStore{db: db}
}

func (s *PostgresLicenseStore) Create(ctx context.Context, l *license.License) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (id, case_id, recipient_id, category, exam_date,
			photo_ref, issue_date, expiry_date, registration_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, l.ID.String(), l.CaseID.String(), l.RecipientID, l.Category, l.ExamDate,
		l.PhotoRef, l.IssueDate, l.ExpiryDate, l.RegistrationCode)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

func (s *PostgresLicenseStore) ListByCase(ctx context.Context, caseID id.CaseID) ([]*license.License, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, recipient_id, category, exam_date,
			photo_ref, issue_date, expiry_date, registration_code
		FROM licenses
		WHERE case_id = $1
		ORDER BY issue_date, id
	`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var out []*license.License
	for rows.Next() {
		var l license.License
		var rawID, rawCaseID string
		if err := rows.Scan(&rawID, &rawCaseID, &l.RecipientID, &l.Category, &l.ExamDate,
			&l.PhotoRef, &l.IssueDate, &l.ExpiryDate, &l.RegistrationCode); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenseID, err := id.ParseLicenseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("stored license id %q is invalid: %w", rawID, err)
		}
		parsedCaseID, err := id.ParseCaseID(rawCaseID)
		if err != nil {
			return nil, fmt.Errorf("stored case id %q is invalid: %w", rawCaseID, err)
		}
		l.ID = licenseID
		l.CaseID = parsedCaseID
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return out, nil
}
