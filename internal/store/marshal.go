package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/labengine/internal/ir"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalCommand stores the whole command, params and result included.
func marshalCommand(cmd ir.Command) (string, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("marshal command: %w", err)
	}
	return string(data), nil
}

// unmarshalCommand relies on ir.Command.UnmarshalJSON to pick the typed
// params and result from commandType.
func unmarshalCommand(data string) (ir.Command, error) {
	var cmd ir.Command
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		return ir.Command{}, fmt.Errorf("unmarshal command: %w", err)
	}
	return cmd, nil
}

func marshalJSON(v any, what string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}
