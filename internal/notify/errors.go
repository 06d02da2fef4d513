package notify

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when publishing on a disconnected client.
	ErrNotConnected = errors.New("notify: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("notify: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("notify: publish failed")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS = errors.New("notify: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("notify: topic cannot be empty")
)
