package store

import (
	"context"
	"database/sql"

	"certflow/pkg/platform/tx"
)

func txFrom(ctx context.Context) (*sql.Tx, bool) {
	return tx.From(ctx)
}
