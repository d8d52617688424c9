package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"certflow/internal/appointment"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
)

// PostgresAppointmentStore persists appointments in PostgreSQL, one live row
// per case (case_id is the primary key).
type PostgresAppointmentStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed appointment store.
func NewPostgres(db *sql.DB) *PostgresAppointmentStore {
	return &PostgresAppointmentStore{db: db}
}

func (s *PostgresAppointmentStore) Create(ctx context.Context, appt *appointment.Appointment) error {
	attendees, tests, err := marshalDetails(appt)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (case_id, date_time, room, attendee_counts, tests_included, created_at, replaced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (case_id) DO NOTHING
	`, appt.CaseID.String(), appt.DateTime, appt.Room, attendees, tests, appt.CreatedAt, appt.ReplacedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresAppointmentStore) Replace(ctx context.Context, appt *appointment.Appointment) error {
	attendees, tests, err := marshalDetails(appt)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET date_time = $1, room = $2, attendee_counts = $3, tests_included = $4, created_at = $5, replaced_at = $6
		WHERE case_id = $7
	`, appt.DateTime, appt.Room, attendees, tests, appt.CreatedAt, appt.ReplacedAt, appt.CaseID.String())
	if err != nil {
		return fmt.Errorf("replace appointment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresAppointmentStore) Get(ctx context.Context, caseID id.CaseID) (*appointment.Appointment, error) {
	appt := &appointment.Appointment{CaseID: caseID}
	var attendees, tests []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT date_time, room, attendee_counts, tests_included, created_at, replaced_at
		FROM appointments WHERE case_id = $1
	`, caseID.String()).Scan(&appt.DateTime, &appt.Room, &attendees, &tests, &appt.CreatedAt, &appt.ReplacedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}

	if len(attendees) > 0 {
		if err := json.Unmarshal(attendees, &appt.AttendeeCounts); err != nil {
			return nil, fmt.Errorf("unmarshal attendee counts: %w", err)
		}
	}
	if len(tests) > 0 {
		if err := json.Unmarshal(tests, &appt.TestsIncluded); err != nil {
			return nil, fmt.Errorf("unmarshal tests included: %w", err)
		}
	}
	return appt, nil
}

func marshalDetails(appt *appointment.Appointment) (attendees, tests []byte, err error) {
	attendees, err = json.Marshal(appt.AttendeeCounts)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal attendee counts: %w", err)
	}
	tests, err = json.Marshal(appt.TestsIncluded)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tests included: %w", err)
	}
	return attendees, tests, nil
}
