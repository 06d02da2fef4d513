package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned when writing to or reading from a closed port.
	ErrNotOpen = errors.New("transport: port not open")

	// ErrEmptyAck is returned when a connection is configured without an
	// ack marker.
	ErrEmptyAck = errors.New("transport: ack marker cannot be empty")
)

// NoResponseError reports that every attempt to send a command ended
// without the ack marker.
type NoResponseError struct {
	Port    string
	Command string
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response from %s to command %q", e.Port, e.Command)
}

// ErrorResponseError reports a response containing the error keyword.
type ErrorResponseError struct {
	Port     string
	Response string
}

func (e *ErrorResponseError) Error() string {
	return fmt.Sprintf("error response from %s: %s", e.Port, e.Response)
}

// AlarmResponseError reports a response containing the alarm keyword.
type AlarmResponseError struct {
	Port     string
	Response string
}

func (e *AlarmResponseError) Error() string {
	return fmt.Sprintf("alarm response from %s: %s", e.Port, e.Response)
}

// IsNoResponse reports whether err is or wraps a *NoResponseError.
func IsNoResponse(err error) bool {
	var target *NoResponseError
	return errors.As(err, &target)
}

// IsErrorResponse reports whether err is or wraps an *ErrorResponseError.
func IsErrorResponse(err error) bool {
	var target *ErrorResponseError
	return errors.As(err, &target)
}

// IsAlarmResponse reports whether err is or wraps an *AlarmResponseError.
func IsAlarmResponse(err error) bool {
	var target *AlarmResponseError
	return errors.As(err, &target)
}
