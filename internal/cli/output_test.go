package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labengine/internal/ir"
	"github.com/roach88/labengine/internal/protocol"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestOutputFormatter_IsJSON(t *testing.T) {
	assert.True(t, (&OutputFormatter{Format: "json"}).IsJSON())
	assert.False(t, (&OutputFormatter{Format: "text"}).IsJSON())
	assert.False(t, (&OutputFormatter{}).IsJSON(), "text is the default")
}

func TestOutputFormatter_FailCodes(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		code     string
		message  string
		cause    string
	}{
		{"config", ExitCommandError, ErrCodeConfig, "failed to load config", "hardware.mode: unknown mode \"robot\""},
		{"journal", ExitCommandError, ErrCodeJournal, "failed to open journal", "database is locked"},
		{"hardware", ExitCommandError, ErrCodeHardware, "failed to open hardware", "dial tcp 10.0.0.5:23: connection refused"},
		{"run", ExitCommandError, ErrCodeRun, "run failed to start", "run r1 is already journaled"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/json", func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			cause := errors.New(tt.cause)
			err := formatter.Fail(tt.exitCode, tt.code, tt.message, cause)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.message+": "+tt.cause, err.Error())

			resp := decodeResponse(t, buf)
			assert.Equal(t, "error", resp.Status)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.cause, resp.Error.Message)
		})

		t.Run(tt.name+"/text", func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			err := formatter.Fail(tt.exitCode, tt.code, tt.message, errors.New(tt.cause))
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Equal(t, "Error ["+tt.code+"]: "+tt.cause+"\n", buf.String())
		})
	}
}

func TestOutputFormatter_ErrorDetailsNeedVerbose(t *testing.T) {
	details := []string{"commands.0.params.volume: incomplete value"}

	quiet := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: quiet}).Error(protocol.ErrCodeSchema, "invalid protocol", details)
	assert.NotContains(t, quiet.String(), "Details:")

	loud := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: loud, Verbose: true}).Error(protocol.ErrCodeSchema, "invalid protocol", details)
	assert.Contains(t, loud.String(), "Error [P004]: invalid protocol")
	assert.Contains(t, loud.String(), "Details: [commands.0.params.volume: incomplete value]")

	asJSON := &bytes.Buffer{}
	(&OutputFormatter{Format: "json", Writer: asJSON}).Error(protocol.ErrCodeSchema, "invalid protocol", details)
	resp := decodeResponse(t, asJSON)
	require.NotNil(t, resp.Error)
	assert.Equal(t, []any{"commands.0.params.volume: incomplete value"}, resp.Error.Details, "JSON always carries details")
}

func TestOutputFormatter_SuccessRunSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	errorID := "err-1"
	summary := newRunSummary("run-1", "transfer", ir.EngineFailed,
		[]ir.Command{
			{ID: "c1", CommandType: ir.CommandTypeHome, Status: ir.CommandSucceeded},
			{ID: "c2", CommandType: ir.CommandTypeHome, Status: ir.CommandFailed, ErrorID: &errorID},
		},
		[]ir.ErrorOccurrence{{ID: errorID, ErrorType: "UNEXPECTED_PROTOCOL_ERROR", Detail: "stall"}},
	)
	require.NoError(t, formatter.Success(summary))

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, summary, resp.Data)
}

func TestLoadProtocol_ReportsLoadErrorCode(t *testing.T) {
	tests := []struct {
		name string
		path string
		code string
	}{
		{"unsupported_extension", "transfer.txt", protocol.ErrCodeUnknownFormat},
		{"missing_file", filepath.Join(t.TempDir(), "missing.yaml"), protocol.ErrCodeRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			proto, err := loadProtocol(tt.path, formatter)
			assert.Nil(t, proto)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var loadErr *protocol.LoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, tt.code, loadErr.Code)

			resp := decodeResponse(t, buf)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit_error", NewExitError(ExitCommandError, "bad config"), ExitCommandError},
		{"wrapped", WrapExitError(ExitFailure, "run failed", errors.New("boom")), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("Loaded %s: %d commands", "transfer", 7)
	assert.Empty(t, out.String())
	assert.Equal(t, "Loaded transfer: 7 commands\n", errOut.String())

	quiet := &bytes.Buffer{}
	(&OutputFormatter{Format: "text", Writer: quiet}).VerboseLog("Loaded %s", "transfer")
	assert.Empty(t, quiet.String())
}
