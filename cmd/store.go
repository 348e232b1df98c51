package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/store"
)

// openStore opens the configured backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		s, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		st = s
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
