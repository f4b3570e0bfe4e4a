package vars

import (
	"context"
	"database/sql"

	"github.com/hpungsan/sieve/internal/db"
)

// SQLite stores variables in the local sieve.db.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an initialized database (see db.Init).
func NewSQLite(database *sql.DB) *SQLite {
	return &SQLite{db: database}
}

func (s *SQLite) Get(ctx context.Context, name string) (string, bool, error) {
	return db.GetVariable(ctx, s.db, name)
}

func (s *SQLite) Set(ctx context.Context, name, value string) error {
	return db.SetVariable(ctx, s.db, name, value)
}

// List returns every stored variable ordered by name.
func (s *SQLite) List(ctx context.Context) ([]db.Variable, error) {
	return db.ListVariables(ctx, s.db)
}
