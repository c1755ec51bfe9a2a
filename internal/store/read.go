package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no run matches.
var ErrNotFound = errors.New("run not found")

const selectRun = `
	SELECT seq, id, kernel, kernel_hash, mode, params_hash, applied, arguments, output, rewriter_version
	FROM runs
`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var applied, args, output string
	err := row.Scan(&r.Seq, &r.ID, &r.Kernel, &r.KernelHash, &r.Mode, &r.ParamsHash,
		&applied, &args, &output, &r.RewriterVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if r.Applied, err = unmarshalApplied(applied); err != nil {
		return Run{}, err
	}
	r.Arguments = []byte(args)
	r.Output = []byte(output)
	return r, nil
}

// LookupRun returns the cached run for key. The boolean is false on a
// cache miss.
func (s *Store) LookupRun(ctx context.Context, key Key) (Run, bool, error) {
	row := s.db.QueryRowContext(ctx, selectRun+`
		WHERE kernel_hash = ? AND mode = ? AND params_hash = ?
	`, key.KernelHash, key.Mode, key.ParamsHash)
	r, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("lookup run: %w", err)
	}
	return r, true, nil
}

// GetRun returns the run with the given ID, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+`WHERE id = ?`, id)
	r, err := scanRun(row)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the runs of the named kernel, or every run when kernel
// is empty. Results are ordered deterministically:
// ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, kernel string) ([]Run, error) {
	query := selectRun
	var args []any
	if kernel != "" {
		query += " WHERE kernel = ?"
		args = append(args, kernel)
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
