package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_AllFormats(t *testing.T) {
	out, err := execute(t, "validate",
		"../protocol/testdata/transfer.yaml",
		"../protocol/testdata/transfer.json",
		"../protocol/testdata/transfer.cue",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ../protocol/testdata/transfer.yaml: simple transfer")
	assert.Contains(t, out, "✓ ../protocol/testdata/transfer.json: simple transfer")
	assert.Contains(t, out, "✓ ../protocol/testdata/transfer.cue: simple transfer")
}

func TestValidateCommand_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", "../protocol/testdata/transfer.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []validateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "simple transfer", resp.Data[0].Name)
	assert.Positive(t, resp.Data[0].Commands)
}

func TestValidateCommand_Invalid(t *testing.T) {
	out, err := execute(t, "validate", "testdata/bad_command.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [P00")
}

func TestValidateCommand_RequiresArgs(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
}
