// Package protocol loads protocol files.
//
// A protocol is a named list of command requests plus optional labware
// offsets. Files may be YAML, JSON or CUE; every format is checked against
// the embedded CUE schema before commands are decoded and validated.
package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/labengine/internal/ir"
)

//go:embed schema.cue
var schemaSource []byte

// Format is a protocol file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", &LoadError{Code: ErrCodeUnknownFormat, Message: fmt.Sprintf("unsupported protocol file extension %q", filepath.Ext(path))}
}

// Protocol is a parsed, validated protocol.
type Protocol struct {
	Name           string                   `json:"name"`
	Description    string                   `json:"description,omitempty"`
	LabwareOffsets []ir.LabwareOffsetCreate `json:"labwareOffsets,omitempty"`
	Commands       []ir.CommandRequest      `json:"commands"`
}

// Load reads and parses a protocol file.
func Load(path string) (*Protocol, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(data, format, path)
}

// Parse parses protocol data. filename is used in error positions.
func Parse(data []byte, format Format, filename string) (*Protocol, error) {
	ctx := cuecontext.New()

	var v cue.Value
	switch format {
	case FormatCUE, FormatJSON:
		v = ctx.CompileBytes(data, cue.Filename(filename))
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
		}
		asJSON, err := json.Marshal(raw)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeSyntax, Message: err.Error()}
		}
		v = ctx.CompileBytes(asJSON, cue.Filename(filename))
	default:
		return nil, &LoadError{Code: ErrCodeUnknownFormat, Message: fmt.Sprintf("unknown format %q", format)}
	}
	if err := v.Err(); err != nil {
		return nil, fromCUEError(ErrCodeSyntax, err)
	}

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Protocol"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("protocol: compile schema: %w", err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUEError(ErrCodeSchema, err)
	}

	asJSON, err := unified.MarshalJSON()
	if err != nil {
		return nil, fromCUEError(ErrCodeSchema, err)
	}
	var p Protocol
	if err := json.Unmarshal(asJSON, &p); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidCommand, Message: err.Error()}
	}

	for i, req := range p.Commands {
		if err := req.Validate(); err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("commands[%d] (%s): %v", i, req.CommandType, err)}
		}
	}
	return &p, nil
}

// fromCUEError keeps the first error and its position.
func fromCUEError(code string, err error) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Error codes.
const (
	ErrCodeUnknownFormat  = "P001"
	ErrCodeRead           = "P002"
	ErrCodeSyntax         = "P003"
	ErrCodeSchema         = "P004"
	ErrCodeInvalidCommand = "P005"
)

// LoadError is a protocol loading failure.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
