package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandStatus is the lifecycle status of a command.
//
// QUEUED -> RUNNING -> SUCCEEDED | FAILED. Terminal statuses never change.
type CommandStatus string

const (
	CommandQueued    CommandStatus = "queued"
	CommandRunning   CommandStatus = "running"
	CommandSucceeded CommandStatus = "succeeded"
	CommandFailed    CommandStatus = "failed"
)

// IsTerminal reports whether s is SUCCEEDED or FAILED.
func (s CommandStatus) IsTerminal() bool {
	return s == CommandSucceeded || s == CommandFailed
}

// CommandType is the closed tag of the command union.
type CommandType string

const (
	CommandTypeLoadLabware          CommandType = "loadLabware"
	CommandTypeAddLabwareDefinition CommandType = "addLabwareDefinition"
	CommandTypeLoadPipette          CommandType = "loadPipette"
	CommandTypeLoadModule           CommandType = "loadModule"
	CommandTypeHome                 CommandType = "home"
	CommandTypeMoveToWell           CommandType = "moveToWell"
	CommandTypeMoveRelative         CommandType = "moveRelative"
	CommandTypePickUpTip            CommandType = "pickUpTip"
	CommandTypeDropTip              CommandType = "dropTip"
	CommandTypeAspirate             CommandType = "aspirate"
	CommandTypeDispense             CommandType = "dispense"
	CommandTypePause                CommandType = "pause"
)

// CommandTypes lists every known command type in catalogue order.
var CommandTypes = []CommandType{
	CommandTypeLoadLabware,
	CommandTypeAddLabwareDefinition,
	CommandTypeLoadPipette,
	CommandTypeLoadModule,
	CommandTypeHome,
	CommandTypeMoveToWell,
	CommandTypeMoveRelative,
	CommandTypePickUpTip,
	CommandTypeDropTip,
	CommandTypeAspirate,
	CommandTypeDispense,
	CommandTypePause,
}

// CommandParams is the type-specific payload of a command.
// Implementations are pointer types defined in params.go.
type CommandParams interface {
	CommandType() CommandType
}

// CommandResult is the type-specific result of a succeeded command.
type CommandResult interface {
	isCommandResult()
}

// Command is a single unit of queued work.
//
// StartedAt is set once RUNNING, CompletedAt once terminal. Result is set
// only when SUCCEEDED and ErrorID only when FAILED.
type Command struct {
	ID          string        `json:"id"`
	CreatedAt   time.Time     `json:"createdAt"`
	CommandType CommandType   `json:"commandType"`
	Params      CommandParams `json:"params"`
	Status      CommandStatus `json:"status"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Result      CommandResult `json:"result,omitempty"`
	ErrorID     *string       `json:"errorId,omitempty"`
}

// UnmarshalJSON decodes params and result according to the commandType tag.
func (c *Command) UnmarshalJSON(data []byte) error {
	type alias Command
	aux := struct {
		*alias
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result,omitempty"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	params, err := decodeParams(c.CommandType, aux.Params)
	if err != nil {
		return fmt.Errorf("command %s: %w", c.ID, err)
	}
	c.Params = params

	c.Result = nil
	if isPresent(aux.Result) {
		result, err := NewResult(c.CommandType)
		if err != nil {
			return fmt.Errorf("command %s: %w", c.ID, err)
		}
		if err := json.Unmarshal(aux.Result, result); err != nil {
			return fmt.Errorf("command %s: decode result: %w", c.ID, err)
		}
		c.Result = result
	}
	return nil
}

// CommandRequest is a request to enqueue a command. The engine assigns the
// id and creation timestamp.
type CommandRequest struct {
	CommandType CommandType   `json:"commandType"`
	Params      CommandParams `json:"params"`
}

// NewCommandRequest builds a request tagged from the params' own type.
func NewCommandRequest(params CommandParams) CommandRequest {
	return CommandRequest{CommandType: params.CommandType(), Params: params}
}

// UnmarshalJSON decodes params according to the commandType tag.
func (r *CommandRequest) UnmarshalJSON(data []byte) error {
	var aux struct {
		CommandType CommandType     `json:"commandType"`
		Params      json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	params, err := decodeParams(aux.CommandType, aux.Params)
	if err != nil {
		return err
	}
	r.CommandType = aux.CommandType
	r.Params = params
	return nil
}

// Validate checks the request tag against its params and runs the params'
// own validation, if any.
func (r CommandRequest) Validate() error {
	if r.Params == nil {
		return ValidationError{Field: "params", Message: "required"}
	}
	if r.CommandType != r.Params.CommandType() {
		return ValidationError{
			Field:   "commandType",
			Message: fmt.Sprintf("%q does not match params type %q", r.CommandType, r.Params.CommandType()),
		}
	}
	if v, ok := r.Params.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// NewParams returns a zero params value for t.
func NewParams(t CommandType) (CommandParams, error) {
	switch t {
	case CommandTypeLoadLabware:
		return &LoadLabwareParams{}, nil
	case CommandTypeAddLabwareDefinition:
		return &AddLabwareDefinitionParams{}, nil
	case CommandTypeLoadPipette:
		return &LoadPipetteParams{}, nil
	case CommandTypeLoadModule:
		return &LoadModuleParams{}, nil
	case CommandTypeHome:
		return &HomeParams{}, nil
	case CommandTypeMoveToWell:
		return &MoveToWellParams{}, nil
	case CommandTypeMoveRelative:
		return &MoveRelativeParams{}, nil
	case CommandTypePickUpTip:
		return &PickUpTipParams{}, nil
	case CommandTypeDropTip:
		return &DropTipParams{}, nil
	case CommandTypeAspirate:
		return &AspirateParams{}, nil
	case CommandTypeDispense:
		return &DispenseParams{}, nil
	case CommandTypePause:
		return &PauseParams{}, nil
	}
	return nil, unknownCommandType(t)
}

// NewResult returns a zero result value for t.
func NewResult(t CommandType) (CommandResult, error) {
	switch t {
	case CommandTypeLoadLabware:
		return &LoadLabwareResult{}, nil
	case CommandTypeAddLabwareDefinition:
		return &AddLabwareDefinitionResult{}, nil
	case CommandTypeLoadPipette:
		return &LoadPipetteResult{}, nil
	case CommandTypeLoadModule:
		return &LoadModuleResult{}, nil
	case CommandTypeAspirate:
		return &AspirateResult{}, nil
	case CommandTypeDispense:
		return &DispenseResult{}, nil
	case CommandTypeHome, CommandTypeMoveToWell, CommandTypeMoveRelative,
		CommandTypePickUpTip, CommandTypeDropTip, CommandTypePause:
		return &EmptyResult{}, nil
	}
	return nil, unknownCommandType(t)
}

func decodeParams(t CommandType, raw json.RawMessage) (CommandParams, error) {
	params, err := NewParams(t)
	if err != nil {
		return nil, err
	}
	if isPresent(raw) {
		if err := json.Unmarshal(raw, params); err != nil {
			return nil, fmt.Errorf("decode %s params: %w", t, err)
		}
	}
	return params, nil
}

func unknownCommandType(t CommandType) error {
	return NewEngineError(ErrCodeUnsupportedCommand, "unknown command type %q", t)
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
