package repo

import (
	"context"
	"fmt"
	"strings"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/sqlinline"
)

// PostgresLedger relies on the primary key of announced_transactions: the
// insert that affects a row is the one that wins the announcement.
type PostgresLedger struct {
	sql infra.SQLExecutor
}

// NewPostgresLedger wraps an executor (normally an infra.SQLRunner).
func NewPostgresLedger(sql infra.SQLExecutor) *PostgresLedger {
	return &PostgresLedger{sql: sql}
}

// EnsureSchema creates the ledger table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.sql.Exec(ctx, sqlinline.QCreateLedger); err != nil {
		return fmt.Errorf("ledger: create table: %w", err)
	}
	return nil
}

// MarkAnnounced implements domain.IdentityStore.
func (l *PostgresLedger) MarkAnnounced(ctx context.Context, id string) (bool, error) {
	tag, err := l.sql.Exec(ctx, sqlinline.QMarkAnnounced, strings.TrimSpace(id))
	if err != nil {
		return false, fmt.Errorf("ledger: insert %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Contains implements domain.IdentityStore.
func (l *PostgresLedger) Contains(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := l.sql.QueryRow(ctx, sqlinline.QLedgerContains, strings.TrimSpace(id)).Scan(&exists); err != nil {
		if infra.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("ledger: lookup %s: %w", id, err)
	}
	return exists, nil
}

var _ domain.IdentityStore = (*PostgresLedger)(nil)
