// Package events publishes reel lifecycle events to Redis pub/sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/reelkit/pkg/logging"
)

// Redis channels.
const (
	ChannelExportRequested = "events.reel.export_requested"
	ChannelRenderSubmitted = "events.reel.render_submitted"
	ChannelProjectSaved    = "events.project.saved"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType     string    `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	Source        string    `json:"source"`
	Version       string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent. An empty correlationID gets a new one.
func NewBaseEvent(eventType, correlationID string) BaseEvent {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return BaseEvent{
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Source:        "reelkit",
		Version:       "1.0",
	}
}

// ExportRequestedEvent is published when an export document is produced.
type ExportRequestedEvent struct {
	BaseEvent

	SessionID   string `json:"session_id"`
	ExportName  string `json:"export_name"`
	AspectRatio string `json:"aspect_ratio"`
	Layers      int    `json:"layers"`
	Cues        int    `json:"cues"`
}

// RenderSubmittedEvent is published after a render submission returns.
type RenderSubmittedEvent struct {
	BaseEvent

	JobID      string  `json:"job_id,omitempty"`
	ExportName string  `json:"export_name"`
	Transport  string  `json:"transport"`
	Status     string  `json:"status"`
	ErrorCode  *string `json:"error_code,omitempty"`
	Seconds    float64 `json:"seconds"`
}

// ProjectSavedEvent is published when a project is stored.
type ProjectSavedEvent struct {
	BaseEvent

	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	AspectRatio string `json:"aspect_ratio"`
	ImageCount  int    `json:"image_count"`
}

// Broker is the publishing side of a Redis client.
type Broker interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher publishes reel events.
type Publisher struct {
	broker Broker
	logger logging.Logger
}

// NewPublisher creates a publisher on broker, usually a *redis.Client.
func NewPublisher(broker Broker, logger logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Publisher{
		broker: broker,
		logger: logger.With(logging.Component("event_publisher")),
	}
}

// Dial connects to Redis at addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// PublishExportRequested publishes e on ChannelExportRequested.
func (p *Publisher) PublishExportRequested(ctx context.Context, e ExportRequestedEvent) error {
	e.BaseEvent = NewBaseEvent("reel.export_requested", e.CorrelationID)
	return p.publish(ctx, ChannelExportRequested, e)
}

// PublishRenderSubmitted publishes e on ChannelRenderSubmitted.
func (p *Publisher) PublishRenderSubmitted(ctx context.Context, e RenderSubmittedEvent) error {
	e.BaseEvent = NewBaseEvent("reel.render_submitted", e.CorrelationID)
	return p.publish(ctx, ChannelRenderSubmitted, e)
}

// PublishProjectSaved publishes e on ChannelProjectSaved.
func (p *Publisher) PublishProjectSaved(ctx context.Context, e ProjectSavedEvent) error {
	e.BaseEvent = NewBaseEvent("project.saved", e.CorrelationID)
	return p.publish(ctx, ChannelProjectSaved, e)
}

func (p *Publisher) publish(ctx context.Context, channel string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.broker.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event", logging.Err(err), logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	p.logger.Debug("Event published", logging.F("channel", channel), logging.F("payload_size", len(data)))
	return nil
}
