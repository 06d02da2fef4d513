// Package notify publishes run progress over MQTT.
//
// StatusPublisher is an action reactor: it mirrors the engine status of a
// run to a retained topic and every command transition to a per-command
// topic. Publishing happens on the publisher's own goroutine; failures are
// logged and never reach the engine.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/roach88/labengine/internal/action"
	"github.com/roach88/labengine/internal/ir"
)

// Publisher sends one MQTT message. *Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// RunStatusEvent is the payload of the run status topic.
type RunStatusEvent struct {
	RunID     string          `json:"runId"`
	Status    ir.EngineStatus `json:"status"`
	Action    string          `json:"action"`
	Timestamp time.Time       `json:"timestamp"`
}

// CommandEvent is the payload of a command topic.
type CommandEvent struct {
	RunID       string           `json:"runId"`
	CommandID   string           `json:"commandId"`
	CommandType ir.CommandType   `json:"commandType,omitempty"`
	Status      ir.CommandStatus `json:"status"`
	ErrorID     string           `json:"errorId,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// StatusPublisher publishes a run's progress.
type StatusPublisher struct {
	pub    Publisher
	topics Topics
	qos    byte
	runID  string
	status func() ir.EngineStatus
	buffer *action.Buffer
	logger *slog.Logger
	now    func() time.Time

	// Owned by the Run goroutine.
	lastStatus ir.EngineStatus
}

// PublisherOption configures a StatusPublisher.
type PublisherOption func(*StatusPublisher)

// WithQoS sets the QoS of every message. Default: 1.
func WithQoS(qos byte) PublisherOption {
	return func(p *StatusPublisher) {
		p.qos = qos
	}
}

// WithPublisherLogger sets the logger. Default: slog.Default().
func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *StatusPublisher) {
		p.logger = l
	}
}

// WithPublisherClock sets the timestamp source.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *StatusPublisher) {
		p.now = now
	}
}

// NewStatusPublisher creates a publisher for runID. status reports the
// current engine status; it is read after each action is handled.
func NewStatusPublisher(pub Publisher, topics Topics, runID string, status func() ir.EngineStatus, opts ...PublisherOption) *StatusPublisher {
	p := &StatusPublisher{
		pub:    pub,
		topics: topics,
		qos:    1,
		runID:  runID,
		status: status,
		buffer: action.NewBuffer(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleAction implements action.Handler.
func (p *StatusPublisher) HandleAction(a action.Action) {
	p.buffer.Enqueue(a)
}

// Close stops accepting actions. Run returns once the backlog is published.
func (p *StatusPublisher) Close() {
	p.buffer.Close()
}

// Run publishes until Close has been called and the backlog is empty, or
// ctx is done.
func (p *StatusPublisher) Run(ctx context.Context) error {
	return p.buffer.Drain(ctx, p.publish)
}

func (p *StatusPublisher) publish(_ context.Context, a action.Action) {
	now := p.now()

	switch a := a.(type) {
	case action.QueueCommand:
		p.publishCommand(CommandEvent{
			RunID:       p.runID,
			CommandID:   a.CommandID,
			CommandType: a.Request.CommandType,
			Status:      ir.CommandQueued,
			Timestamp:   now,
		})
	case action.UpdateCommand:
		p.publishCommand(CommandEvent{
			RunID:       p.runID,
			CommandID:   a.Command.ID,
			CommandType: a.Command.CommandType,
			Status:      a.Command.Status,
			Timestamp:   now,
		})
	case action.FailCommand:
		p.publishCommand(CommandEvent{
			RunID:     p.runID,
			CommandID: a.CommandID,
			Status:    ir.CommandFailed,
			ErrorID:   a.ErrorID,
			Timestamp: now,
		})
	}

	// Status is retained, so only changes are worth a message.
	status := p.status()
	if status == p.lastStatus {
		return
	}
	p.lastStatus = status
	p.send(p.topics.RunStatus(p.runID), RunStatusEvent{
		RunID:     p.runID,
		Status:    status,
		Action:    action.Name(a),
		Timestamp: now,
	}, true)
}

func (p *StatusPublisher) publishCommand(ev CommandEvent) {
	p.send(p.topics.Command(p.runID, ev.CommandID), ev, false)
}

func (p *StatusPublisher) send(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("status payload encoding failed", "topic", topic, "error", err)
		return
	}
	if err := p.pub.Publish(topic, payload, p.qos, retained); err != nil {
		p.logger.Warn("status publish failed", "topic", topic, "error", err)
	}
}
