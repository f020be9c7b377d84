// Package app wires the workspace database, migrations and config into a
// ready engine for the CLI and server entrypoints.
package app

import (
	"database/sql"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/engine"
	"caseline/internal/migrate"
)

// Open prepares the workspace: database opened, schema migrated, config
// loaded (defaults when no caseline.yml exists).
func Open(workspace string) (*sql.DB, *config.Config, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, cfg, nil
}

// NewEngine is Open plus engine construction. The caller owns the
// returned DB handle.
func NewEngine(workspace string) (engine.Engine, *sql.DB, error) {
	conn, cfg, err := Open(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	return engine.New(conn, cfg), conn, nil
}
