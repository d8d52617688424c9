package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"certflow/internal/workflow"
	id "certflow/pkg/domain"
	"certflow/pkg/platform/sentinel"
	"certflow/pkg/requestcontext"
)

// PostgresCaseStore persists case stage state in PostgreSQL.
//
// Schema (scripts/schema.sql): the cases table holds identity and the
// case_stages table one row per (case_id, stage). Stage rows are created with
// the case, so SetStage is always an UPDATE with a prior-state guard.
type PostgresCaseStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed case store.
func NewPostgres(db *sql.DB) *PostgresCaseStore {
	return &PostgresCaseStore{db: db}
}

func (s *PostgresCaseStore) Create(ctx context.Context, c *workflow.Case) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create case: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cases (id, process_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, c.ID.String(), c.ProcessType, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}

	for _, stage := range id.AllStages() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO case_stages (case_id, stage, state, updated_at)
			VALUES ($1, $2, $3, $4)
		`, c.ID.String(), stage.String(), string(c.Stages[stage]), c.CreatedAt); err != nil {
			return fmt.Errorf("insert case stage %s: %w", stage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create case: %w", err)
	}
	return nil
}

func (s *PostgresCaseStore) Get(ctx context.Context, caseID id.CaseID) (*workflow.Case, error) {
	c := &workflow.Case{
		ID:     caseID,
		Stages: make(map[id.Stage]id.StageState, id.StageCount),
	}
	err := s.queryRow(ctx, `
		SELECT process_type, created_at, updated_at FROM cases WHERE id = $1
	`, caseID.String()).Scan(&c.ProcessType, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}

	rows, err := s.query(ctx, `
		SELECT stage, state FROM case_stages WHERE case_id = $1
	`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("load case stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage, state string
		if err := rows.Scan(&stage, &state); err != nil {
			return nil, fmt.Errorf("scan case stage: %w", err)
		}
		c.Stages[id.Stage(stage)] = id.StageState(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case stages: %w", err)
	}
	return c, nil
}

func (s *PostgresCaseStore) SetStage(ctx context.Context, caseID id.CaseID, stage id.Stage, from, to id.StageState) error {
	now := requestcontext.Now(ctx)

	res, err := s.exec(ctx, `
		UPDATE case_stages SET state = $1, updated_at = $2
		WHERE case_id = $3 AND stage = $4 AND state = $5
	`, string(to), now, caseID.String(), stage.String(), string(from))
	if err != nil {
		return fmt.Errorf("set stage state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set stage state: %w", err)
	}
	if n == 0 {
		// Either the case is missing or the stored state does not match.
		exists, err := s.caseExists(ctx, caseID)
		if err != nil {
			return err
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}

	if _, err := s.exec(ctx, `
		UPDATE cases SET updated_at = $1 WHERE id = $2
	`, now, caseID.String()); err != nil {
		return fmt.Errorf("touch case: %w", err)
	}
	return nil
}

func (s *PostgresCaseStore) List(ctx context.Context) ([]*workflow.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.process_type, c.created_at, c.updated_at, cs.stage, cs.state
		FROM cases c JOIN case_stages cs ON cs.case_id = c.id
		ORDER BY c.created_at, c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	byID := make(map[id.CaseID]*workflow.Case)
	var order []*workflow.Case
	for rows.Next() {
		var rawID, processType, stage, state string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&rawID, &processType, &createdAt, &updatedAt, &stage, &state); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		caseID, err := id.ParseCaseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("stored case id %q is invalid: %w", rawID, err)
		}
		c, ok := byID[caseID]
		if !ok {
			c = &workflow.Case{
				ID:          caseID,
				ProcessType: processType,
				Stages:      make(map[id.Stage]id.StageState, id.StageCount),
				CreatedAt:   createdAt,
				UpdatedAt:   updatedAt,
			}
			byID[caseID] = c
			order = append(order, c)
		}
		c.Stages[id.Stage(stage)] = id.StageState(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return order, nil
}

func (s *PostgresCaseStore) caseExists(ctx context.Context, caseID id.CaseID) (bool, error) {
	var one int
	err := s.queryRow(ctx, `SELECT 1 FROM cases WHERE id = $1`, caseID.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check case exists: %w", err)
	}
	return true, nil
}

// exec, query, and queryRow run against an ambient transaction when one is
// in context (the rehabilitation service couples its audit write with the
// stage reopen), and the pool otherwise.
func (s *PostgresCaseStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	if t, ok := txFrom(ctx); ok {
		return t.ExecContext(ctx, q, args...)
	}
	return s.db.ExecContext(ctx, q, args...)
}

func (s *PostgresCaseStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	if t, ok := txFrom(ctx); ok {
		return t.QueryContext(ctx, q, args...)
	}
	return s.db.QueryContext(ctx, q, args...)
}

func (s *PostgresCaseStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	if t, ok := txFrom(ctx); ok {
		return t.QueryRowContext(ctx, q, args...)
	}
	return s.db.QueryRowContext(ctx, q, args...)
}
