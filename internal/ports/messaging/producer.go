package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"rfid.attendance/internal/core/model"
)

// Producer publishes attendance events. A circuit breaker stops calling the queue
// while it keeps failing so scans are not slowed down by a dead endpoint.
type Producer struct {
	sender   MessageSender
	queueURL string
	cb       *gobreaker.CircuitBreaker
}

func NewProducer(sender MessageSender, queueURL string) *Producer {
	settings := gobreaker.Settings{
		Name:        "Attendance-Events",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	}

	return &Producer{
		sender:   sender,
		queueURL: queueURL,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

func NewSQSProducer(client SQSClient, queueURL string) *Producer {
	return NewProducer(NewSQSSender(client), queueURL)
}

// PublishAttendance sends one recorded event to the events queue.
func (p *Producer) PublishAttendance(ctx context.Context, event model.RecordedEvent) error {
	body, err := json.Marshal(NewAttendanceEvent(event))
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attribute.String("app.employeeId", event.EmployeeID))
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.sender.SendMessage(ctx, p.queueURL, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("events queue unavailable: %w", err)
	}
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
