package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/sieve/internal/errors"
)

// Variable is one stored name/value pair.
type Variable struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updated_at"`
}

// GetVariable returns the value of name. ok is false when it is not set.
func GetVariable(ctx context.Context, db *sql.DB, name string) (value string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM variables WHERE name = ?`, name).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// SetVariable inserts or replaces name.
func SetVariable(ctx context.Context, db *sql.DB, name, value string) error {
	query := `
		INSERT INTO variables (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, name, value, time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListVariables returns every variable ordered by name.
func ListVariables(ctx context.Context, db *sql.DB) ([]Variable, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, value, updated_at FROM variables ORDER BY name`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	vars := make([]Variable, 0)
	for rows.Next() {
		var v Variable
		if err := rows.Scan(&v.Name, &v.Value, &v.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		vars = append(vars, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return vars, nil
}
