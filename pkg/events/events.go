// Package events defines the domain events that fire workflow triggers and
// the run lifecycle events the engine publishes back.
package events

import (
	"time"

	"github.com/campushq/pulse/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "pulse.events"        // Domain events from upstream services
const RunTopic = "pulse.run.events" // Run lifecycle events from the engine

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Domain events produced by upstream services.
	EnrollmentCreatedEvent   EventType = "enrollment.created"
	PaymentReceivedEvent     EventType = "payment.received"
	MembershipExpiringEvent  EventType = "membership.expiring"
	ChatMessageReceivedEvent EventType = "chat.message.received"

	// Run lifecycle events produced by the engine.
	RunStartedEvent    EventType = "run.started"
	RunCompletedEvent  EventType = "run.completed"
	RunFailedEvent     EventType = "run.failed"
	RunSuppressedEvent EventType = "run.suppressed"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	InstituteID string         `json:"institute_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (e BaseEvent) GetID() string {
	return e.ID
}

func (e BaseEvent) GetInstituteID() string {
	return e.InstituteID
}

// DomainEvent is implemented by events that can fire triggers. RunContext
// returns the initial context the run starts from.
type DomainEvent interface {
	GetType() EventType
	GetID() string
	GetInstituteID() string
	RunContext() models.RunContext
}

type EnrollmentCreated struct {
	BaseEvent

	UserID           string         `json:"user_id"`
	PackageSessionID string         `json:"package_session_id"`
	Payload          map[string]any `json:"payload,omitempty"`
}

func (e EnrollmentCreated) GetType() EventType {
	return EnrollmentCreatedEvent
}

func (e EnrollmentCreated) RunContext() models.RunContext {
	ctx := models.RunContext{
		"user_id":            e.UserID,
		"package_session_id": e.PackageSessionID,
		"institute_id":       e.InstituteID,
	}
	ctx.Merge(e.Payload)

	return ctx
}

type PaymentReceived struct {
	BaseEvent

	UserID   string         `json:"user_id"`
	OrderID  string         `json:"order_id"`
	Amount   float64        `json:"amount"`
	Currency string         `json:"currency"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func (e PaymentReceived) GetType() EventType {
	return PaymentReceivedEvent
}

func (e PaymentReceived) RunContext() models.RunContext {
	ctx := models.RunContext{
		"user_id":      e.UserID,
		"order_id":     e.OrderID,
		"amount":       e.Amount,
		"currency":     e.Currency,
		"institute_id": e.InstituteID,
	}
	ctx.Merge(e.Payload)

	return ctx
}

type MembershipExpiring struct {
	BaseEvent

	UserID           string         `json:"user_id"`
	PackageSessionID string         `json:"package_session_id"`
	DaysRemaining    int            `json:"days_remaining"`
	Payload          map[string]any `json:"payload,omitempty"`
}

func (e MembershipExpiring) GetType() EventType {
	return MembershipExpiringEvent
}

func (e MembershipExpiring) RunContext() models.RunContext {
	ctx := models.RunContext{
		"user_id":            e.UserID,
		"package_session_id": e.PackageSessionID,
		"days_remaining":     e.DaysRemaining,
		"institute_id":       e.InstituteID,
	}
	ctx.Merge(e.Payload)

	return ctx
}

type ChatMessageReceived struct {
	BaseEvent

	UserID    string         `json:"user_id"`
	ChannelID string         `json:"channel_id"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func (e ChatMessageReceived) GetType() EventType {
	return ChatMessageReceivedEvent
}

func (e ChatMessageReceived) RunContext() models.RunContext {
	ctx := models.RunContext{
		"user_id":      e.UserID,
		"channel_id":   e.ChannelID,
		"message":      e.Message,
		"institute_id": e.InstituteID,
	}
	ctx.Merge(e.Payload)

	return ctx
}
