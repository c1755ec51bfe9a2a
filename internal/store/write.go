package store

import (
	"context"
	"fmt"

	"github.com/roach88/loopsmith/internal/ir"
)

// RecordRun journals a run. Returns the stored run and whether a new row
// was inserted.
//
// Uses ON CONFLICT(kernel_hash, mode, params_hash) DO NOTHING: a second
// run with the same key leaves the first in place and returns it with
// inserted=false.
func (s *Store) RecordRun(ctx context.Context, r Run) (stored Run, inserted bool, err error) {
	if r.Kernel == "" || r.KernelHash == "" || r.Mode == "" || r.ParamsHash == "" {
		return Run{}, false, fmt.Errorf("record run: kernel, kernel hash, mode and params hash are required")
	}
	appliedJSON, err := marshalApplied(r.Applied)
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: %w", err)
	}
	argsJSON, err := checkJSON("arguments", r.Arguments, "[]")
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: %w", err)
	}
	outputJSON, err := checkJSON("output", r.Output, "{}")
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: %w", err)
	}
	if r.ID == "" {
		r.ID = s.ids.Generate()
	}
	if r.RewriterVersion == "" {
		r.RewriterVersion = ir.RewriterVersion
	}

	// Insert-or-select must see one snapshot
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, kernel, kernel_hash, mode, params_hash, applied, arguments, output, rewriter_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kernel_hash, mode, params_hash) DO NOTHING
	`,
		r.ID,
		r.Kernel,
		r.KernelHash,
		r.Mode,
		r.ParamsHash,
		appliedJSON,
		argsJSON,
		outputJSON,
		r.RewriterVersion,
	)
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: rows affected: %w", err)
	}

	row := tx.QueryRowContext(ctx, selectRun+`
		WHERE kernel_hash = ? AND mode = ? AND params_hash = ?
	`, r.KernelHash, r.Mode, r.ParamsHash)
	stored, err = scanRun(row)
	if err != nil {
		return Run{}, false, fmt.Errorf("record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, false, fmt.Errorf("record run: commit: %w", err)
	}
	return stored, rows > 0, nil
}

// DeleteRuns removes every run of the named kernel and returns how many
// were removed. An empty name clears the journal.
func (s *Store) DeleteRuns(ctx context.Context, kernel string) (int64, error) {
	query := "DELETE FROM runs"
	var args []any
	if kernel != "" {
		query += " WHERE kernel = ?"
		args = append(args, kernel)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete runs: rows affected: %w", err)
	}
	return n, nil
}
