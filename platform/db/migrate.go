package db

import (
	"context"
	"errors"
	"io/fs"

	"leadflow_backend/platform/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations applies every pending migration in fsys and returns the
// schema version afterwards. A nil fsys disables migrations.
func RunMigrations(_ context.Context, cfg config.DatabaseConfig, fsys fs.FS) (uint, error) {
	if fsys == nil {
		return 0, nil
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return 0, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.GetDatabaseURL())
	if err != nil {
		return 0, err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, errors.New("database schema is dirty")
	}
	return version, nil
}
