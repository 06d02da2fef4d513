package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/labengine/internal/ir"
)

// Run is one journaled protocol run.
type Run struct {
	ID            string
	ProtocolName  string
	// SchemaVersion is the command schema the run was recorded with.
	// CreateRun fills it in.
	SchemaVersion string
	Status        ir.EngineStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// ActionRecord is one row of the action log.
type ActionRecord struct {
	Seq        int64
	Name       string
	RecordedAt time.Time
}

// CreateRun inserts a run. Idempotent: inserting the same id twice is a
// no-op.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, protocol_name, schema_version, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.ProtocolName, ir.SchemaVersion, string(run.Status), formatTime(run.CreatedAt), formatNullTime(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// UpdateRunStatus sets the status of a run. completedAt may be nil.
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status ir.EngineStatus, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, completed_at = ? WHERE id = ?
	`, string(status), formatNullTime(completedAt), runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run status %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// WriteCommand upserts the latest snapshot of cmd. seq is the enqueue
// position and is fixed by the first write.
func (s *Store) WriteCommand(ctx context.Context, runID string, seq int64, cmd ir.Command, updatedAt time.Time) error {
	data, err := marshalCommand(cmd)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (run_id, id, seq, command_type, status, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, runID, cmd.ID, seq, string(cmd.CommandType), string(cmd.Status), data, formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// WriteError records an error occurrence. Error occurrences are immutable:
// a second write with the same id is ignored.
func (s *Store) WriteError(ctx context.Context, runID string, seq int64, occ ir.ErrorOccurrence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO errors (run_id, id, seq, error_type, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, runID, occ.ID, seq, occ.ErrorType, occ.Detail, formatTime(occ.CreatedAt))
	if err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// WriteOffset records a labware offset.
func (s *Store) WriteOffset(ctx context.Context, runID string, offset ir.LabwareOffset) error {
	location, err := marshalJSON(offset.Location, "offset location")
	if err != nil {
		return err
	}
	vector, err := marshalJSON(offset.Vector, "offset vector")
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO labware_offsets (run_id, id, definition_uri, location, vector, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, runID, offset.ID, offset.DefinitionURI, location, vector, formatTime(offset.CreatedAt))
	if err != nil {
		return fmt.Errorf("write offset: %w", err)
	}
	return nil
}

// WriteAction appends to the action log.
func (s *Store) WriteAction(ctx context.Context, runID string, rec ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (run_id, seq, name, recorded_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`, runID, rec.Seq, rec.Name, formatTime(rec.RecordedAt))
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}
