package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro). The serving path
// publishes completed-recommendation events; the monitoring worker
// consumes them so that quality bookkeeping never blocks scoring.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the monitoring pipeline.
const (
	TopicRecommendationCompleted = "harrier.recommendation.completed"
	TopicAlert                   = "harrier.recommendation.alert"
)

// RecommendationCompleted is the payload published on
// TopicRecommendationCompleted after a response is returned.
type RecommendationCompleted struct {
	RequestID           string               `json:"requestId"`
	MemberCode          string               `json:"memberCode"`
	Score               *ReferenceValueScore `json:"score"`
	Metrics             *PerformanceMetrics  `json:"metrics"`
	RecommendationCount int                  `json:"recommendationCount"`
	StrategyUsed        Strategy             `json:"strategyUsed"`
	IsDegraded          bool                 `json:"isDegraded"`
}
