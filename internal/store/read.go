package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/labengine/internal/ir"
)

// ListRuns returns every run, oldest first.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, protocol_name, schema_version, status, created_at, completed_at
		FROM runs
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, protocol_name, schema_version, status, created_at, completed_at
		FROM runs
		WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run         Run
		status      string
		createdAt   string
		completedAt sql.NullString
	)
	if err := sc.Scan(&run.ID, &run.ProtocolName, &run.SchemaVersion, &status, &createdAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = ir.EngineStatus(status)

	var err error
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return Run{}, err
	}
	if run.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadRunCommands returns the run's commands in enqueue order.
func (s *Store) ReadRunCommands(ctx context.Context, runID string) ([]ir.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data
		FROM commands
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	cmds := []ir.Command{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		cmd, err := unmarshalCommand(data)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return cmds, nil
}

// ReadRunErrors returns the run's error occurrences in recording order.
func (s *Store) ReadRunErrors(ctx context.Context, runID string) ([]ir.ErrorOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, error_type, detail, created_at
		FROM errors
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	occs := []ir.ErrorOccurrence{}
	for rows.Next() {
		var (
			occ       ir.ErrorOccurrence
			createdAt string
		)
		if err := rows.Scan(&occ.ID, &occ.ErrorType, &occ.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if occ.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate errors: %w", err)
	}
	return occs, nil
}

// ReadRunOffsets returns the run's labware offsets in registration order.
func (s *Store) ReadRunOffsets(ctx context.Context, runID string) ([]ir.LabwareOffset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, definition_uri, location, vector, created_at
		FROM labware_offsets
		WHERE run_id = ?
		ORDER BY rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query offsets: %w", err)
	}
	defer rows.Close()

	offsets := []ir.LabwareOffset{}
	for rows.Next() {
		var (
			off                         ir.LabwareOffset
			location, vector, createdAt string
		)
		if err := rows.Scan(&off.ID, &off.DefinitionURI, &location, &vector, &createdAt); err != nil {
			return nil, fmt.Errorf("scan offset: %w", err)
		}
		if err := json.Unmarshal([]byte(location), &off.Location); err != nil {
			return nil, fmt.Errorf("unmarshal offset location: %w", err)
		}
		if err := json.Unmarshal([]byte(vector), &off.Vector); err != nil {
			return nil, fmt.Errorf("unmarshal offset vector: %w", err)
		}
		if off.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		offsets = append(offsets, off)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offsets: %w", err)
	}
	return offsets, nil
}

// ReadRunActions returns the action log of a run.
func (s *Store) ReadRunActions(ctx context.Context, runID string) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, recorded_at
		FROM actions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ActionRecord{}
	for rows.Next() {
		var (
			rec        ActionRecord
			recordedAt string
		)
		if err := rows.Scan(&rec.Seq, &rec.Name, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if rec.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}
