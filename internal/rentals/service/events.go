package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vrent/pkg/kafka"
	"vrent/pkg/logger"
	"vrent/pkg/model"
)

const (
	EventRentalCreated     = "rental.created"
	EventRentalRescheduled = "rental.rescheduled"
	EventRentalCancelled   = "rental.cancelled"

	eventSchemaVersion = "1.0"
	eventSource        = "rentals-service"
)

// RentalEvent is the payload published to the rental-events topic.
type RentalEvent struct {
	EventType          string     `json:"event_type"`
	RentalID           string     `json:"rental_id"`
	AccountID          string     `json:"account_id"`
	VehicleID          string     `json:"vehicle_id"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	PriceAtRentalCents int64      `json:"price_at_rental_cents"`
	TotalCostCents     int64      `json:"total_cost_cents"`
	Status             string     `json:"status"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	OccurredAt         time.Time  `json:"occurred_at"`
}

// EventPublisher emits rental lifecycle events. Publishing is best-effort:
// implementations must not fail the booking that triggered the event.
type EventPublisher interface {
	RentalCreated(ctx context.Context, rental *model.Rental)
	RentalRescheduled(ctx context.Context, rental *model.Rental)
	RentalCancelled(ctx context.Context, rental *model.Rental)
}

type kafkaEventPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaEventPublisher(producer *kafka.Producer, log *logger.Logger) EventPublisher {
	return &kafkaEventPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *kafkaEventPublisher) RentalCreated(ctx context.Context, rental *model.Rental) {
	p.publish(ctx, EventRentalCreated, rental)
}

func (p *kafkaEventPublisher) RentalRescheduled(ctx context.Context, rental *model.Rental) {
	p.publish(ctx, EventRentalRescheduled, rental)
}

func (p *kafkaEventPublisher) RentalCancelled(ctx context.Context, rental *model.Rental) {
	p.publish(ctx, EventRentalCancelled, rental)
}

// publish keys the message by vehicle id so consumers see each vehicle's
// lifecycle in order. Failures are logged and swallowed; the booking
// already committed and must not be rolled back by a broker hiccup.
func (p *kafkaEventPublisher) publish(ctx context.Context, eventType string, rental *model.Rental) {
	event := RentalEvent{
		EventType:          eventType,
		RentalID:           rental.ID,
		AccountID:          rental.AccountID,
		VehicleID:          rental.VehicleID,
		StartDate:          model.FormatDate(rental.StartDate),
		EndDate:            model.FormatDate(rental.EndDate),
		PriceAtRentalCents: rental.PriceAtRentalCents,
		TotalCostCents:     rental.TotalCostCents,
		Status:             string(rental.Status),
		CancelledAt:        rental.CancelledAt,
		OccurredAt:         time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(rental.VehicleID).
		WithValue(event).
		WithEventID(uuid.NewString()).
		WithEventType(eventType).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(eventSource).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish rental event",
			"event_type", eventType,
			"rental_id", rental.ID,
			"vehicle_id", rental.VehicleID,
			"error", err,
		)
	}
}

// noopEventPublisher is used when no broker is configured.
type noopEventPublisher struct{}

func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) RentalCreated(context.Context, *model.Rental)     {}
func (noopEventPublisher) RentalRescheduled(context.Context, *model.Rental) {}
func (noopEventPublisher) RentalCancelled(context.Context, *model.Rental)   {}
