package repo

import (
	"context"
	"fmt"
	"path/filepath"

	"vaultbot/internal/domain"
	"vaultbot/internal/infra"
	"vaultbot/internal/storage"
)

// OpenLedger builds the identity store selected by cfg.LedgerBackend. The
// returned close function releases any connection the store holds.
func OpenLedger(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.IdentityStore, func(), error) {
	noop := func() {}
	switch cfg.LedgerBackend {
	case infra.LedgerMemory, "":
		return NewMemoryLedger(), noop, nil

	case infra.LedgerFile:
		path := cfg.LedgerFilePath
		if !filepath.IsAbs(path) {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}
		store, err := storage.NewFileStore(filepath.Dir(path))
		if err != nil {
			return nil, nil, fmt.Errorf("ledger: file store: %w", err)
		}
		ledger, err := NewFileLedger(ctx, store, filepath.Base(path))
		if err != nil {
			return nil, nil, err
		}
		return ledger, noop, nil

	case infra.LedgerRedis:
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger: redis: %w", err)
		}
		return NewRedisLedger(client, "", cfg.LedgerTTL), func() { _ = client.Close() }, nil

	case infra.LedgerPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("ledger: postgres: %w", err)
		}
		ledger := NewPostgresLedger(infra.NewSQLRunner(pool, logger))
		if err := ledger.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return ledger, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("ledger: unsupported backend %q", cfg.LedgerBackend)
}
