package ir

import (
	"errors"
	"fmt"
	"time"
)

// EngineError represents a recognized protocol engine error.
//
// Engine errors include:
//   - Not-found: a referenced command, labware, pipette, offset or well is missing
//   - Engine stopped: play, pause or queue advance after a latched stop
//   - Execution: a command implementation rejected its params or state
//   - Unexpected: any other failure, wrapped with its original message
//
// Errors that are already an EngineError pass through the command executor
// unchanged; everything else is wrapped as ErrCodeUnexpectedProtocolError.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeCommandDoesNotExist           ErrorCode = "COMMAND_DOES_NOT_EXIST"
	ErrCodeLabwareDoesNotExist           ErrorCode = "LABWARE_DOES_NOT_EXIST"
	ErrCodeLabwareDefinitionDoesNotExist ErrorCode = "LABWARE_DEFINITION_DOES_NOT_EXIST"
	ErrCodeLabwareOffsetDoesNotExist     ErrorCode = "LABWARE_OFFSET_DOES_NOT_EXIST"
	ErrCodeWellDoesNotExist              ErrorCode = "WELL_DOES_NOT_EXIST"
	ErrCodePipetteDoesNotExist           ErrorCode = "PIPETTE_DOES_NOT_EXIST"
	ErrCodeModuleDoesNotExist            ErrorCode = "MODULE_DOES_NOT_EXIST"
	ErrCodeSlotDoesNotExist              ErrorCode = "SLOT_DOES_NOT_EXIST"

	ErrCodeEngineStopped ErrorCode = "ENGINE_STOPPED"

	ErrCodeLabwareAlreadyLoaded  ErrorCode = "LABWARE_ALREADY_LOADED"
	ErrCodeLabwareIsNotTiprack   ErrorCode = "LABWARE_IS_NOT_TIPRACK"
	ErrCodeTipNotAttached        ErrorCode = "TIP_NOT_ATTACHED"
	ErrCodeTipAlreadyAttached    ErrorCode = "TIP_ALREADY_ATTACHED"
	ErrCodeInvalidVolume         ErrorCode = "INVALID_VOLUME"
	ErrCodeFailedToLoadPipette   ErrorCode = "FAILED_TO_LOAD_PIPETTE"
	ErrCodeUnsupportedCommand    ErrorCode = "UNSUPPORTED_COMMAND"
	ErrCodeInvalidCommandRequest ErrorCode = "INVALID_COMMAND_REQUEST"

	ErrCodeUnexpectedProtocolError ErrorCode = "UNEXPECTED_PROTOCOL_ERROR"
)

// Sentinels for errors.Is. A sentinel matches any EngineError with the same code.
var (
	ErrCommandDoesNotExist = &EngineError{Code: ErrCodeCommandDoesNotExist}
	ErrEngineStopped       = &EngineError{Code: ErrCodeEngineStopped}
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an EngineError sentinel with the same code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Code == e.Code
}

// NewEngineError creates an EngineError with a formatted message.
func NewEngineError(code ErrorCode, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewCommandDoesNotExistError creates the error returned for an unknown command id.
func NewCommandDoesNotExistError(commandID string) *EngineError {
	return NewEngineError(ErrCodeCommandDoesNotExist, "command %s does not exist", commandID)
}

// NewEngineStoppedError creates the error returned once the engine has latched stopped.
func NewEngineStoppedError(message string) *EngineError {
	return &EngineError{Code: ErrCodeEngineStopped, Message: message}
}

// WrapUnexpected wraps an unrecognized error, preserving its message.
// EngineErrors are returned unchanged.
func WrapUnexpected(err error) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return &EngineError{Code: ErrCodeUnexpectedProtocolError, Message: err.Error(), Err: err}
}

// IsEngineError returns true if err is, or wraps, an EngineError.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsEngineStopped returns true if err is an engine-stopped error.
func IsEngineStopped(err error) bool {
	return errors.Is(err, ErrEngineStopped)
}

// IsNotFound returns true if err belongs to the not-found class.
func IsNotFound(err error) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Code {
	case ErrCodeCommandDoesNotExist,
		ErrCodeLabwareDoesNotExist,
		ErrCodeLabwareDefinitionDoesNotExist,
		ErrCodeLabwareOffsetDoesNotExist,
		ErrCodeWellDoesNotExist,
		ErrCodePipetteDoesNotExist,
		ErrCodeModuleDoesNotExist,
		ErrCodeSlotDoesNotExist:
		return true
	}
	return false
}

// CodeOf returns the error code of err, or "" if err is not an EngineError.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// ErrorOccurrence is a recorded error. Immutable once created.
type ErrorOccurrence struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ErrorType string    `json:"errorType"`
	Detail    string    `json:"detail"`
}

// NewErrorOccurrence records err under the given id and time.
//
// The error type is the engine error code; errors from outside the engine are
// typed as ErrCodeUnexpectedProtocolError with their message as detail.
func NewErrorOccurrence(id string, createdAt time.Time, err error) ErrorOccurrence {
	occurrence := ErrorOccurrence{
		ID:        id,
		CreatedAt: createdAt,
		ErrorType: string(ErrCodeUnexpectedProtocolError),
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		occurrence.ErrorType = string(ee.Code)
		occurrence.Detail = ee.Message
	} else if err != nil {
		occurrence.Detail = err.Error()
	}
	return occurrence
}

// ValidationError represents a command request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
