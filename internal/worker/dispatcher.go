package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"rfid.attendance/internal/core"
	"rfid.attendance/internal/core/model"
	"rfid.attendance/internal/ports/notify"
	"rfid.attendance/internal/reader"
	"rfid.attendance/pkg/logger"
	"rfid.attendance/pkg/telemetry"
)

// ScanService is what the dispatcher drives for each scan.
type ScanService interface {
	RegisterOrIdentify(ctx context.Context, cardID string) (model.Resolution, error)
	RecordScanAt(ctx context.Context, employeeID string, at time.Time) (model.RecordedEvent, error)
}

// Dispatcher is the scan loop: it reads cards from a transport, resolves them and
// records attendance events. Per-scan failures are reported and the loop goes on;
// only a fatal transport error ends it early.
type Dispatcher struct {
	transport reader.Transport
	service   ScanService
	notifier  notify.Notifier
	// ScanTimeout bounds the work for one scan. It is not tied to the Run context
	// so a scan that is in progress during shutdown still completes.
	ScanTimeout time.Duration
	// RetryDelay is how long a transport with redelivery holds back a failed scan.
	RetryDelay time.Duration
}

func NewDispatcher(transport reader.Transport, service ScanService, notifier notify.Notifier) *Dispatcher {
	return &Dispatcher{
		transport:   transport,
		service:     service,
		notifier:    notifier,
		ScanTimeout: 10 * time.Second,
		RetryDelay:  30 * time.Second,
	}
}

// Run blocks until ctx is cancelled (returns nil) or the transport fails fatally
// (returns the error). The transport is closed in both cases.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		if err := d.transport.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing transport")
		}
	}()

	log.Info().Str("transport", d.transport.Name()).Msg("Scan dispatcher started. Waiting for cards...")

	for {
		scan, err := d.transport.ReadCard(ctx)
		switch {
		case err == nil:
			d.handleScan(ctx, scan)
		case ctx.Err() != nil:
			log.Info().Msg("Scan dispatcher shutting down...")
			return nil
		case errors.Is(err, reader.ErrReadTimeout):
		case errors.Is(err, reader.ErrTransportFatal):
			log.Error().Err(err).Msg("Card reader failed, dispatcher stopped")
			d.notifier.Notify(ctx, notify.Notification{
				Level:   notify.LevelError,
				Title:   "Reader disconnected",
				Message: fmt.Sprintf("The card reader stopped: %v. Scans are no longer recorded.", err),
			})
			return err
		default:
			log.Warn().Err(err).Msg("Discarding bad read")
			d.notifier.Notify(ctx, notify.Notification{
				Level:   notify.LevelWarning,
				Title:   "Bad read",
				Message: err.Error(),
			})
		}
	}
}

// handleScan acknowledges the scan unless the failure is worth a redelivery.
func (d *Dispatcher) handleScan(parent context.Context, scan reader.Scan) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.ScanTimeout)
	defer cancel()

	if scan.TraceContext != nil {
		ctx = scan.TraceContext(ctx)
	}
	ctx, span := telemetry.StartScanSpan(ctx, d.transport.Name(), scan.CardID)
	defer span.End()

	ctx = logger.EnrichContextWithLogger(ctx)

	err := d.process(ctx, scan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Ctx(ctx).Error().Err(err).Str("card_id", scan.CardID).Msg("Scan failed")
		d.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelError,
			Title:   "Error",
			Message: fmt.Sprintf("Error: %v", err),
		})
		if retryable(err) {
			if scan.Retry != nil {
				if err := scan.Retry(ctx, d.RetryDelay); err != nil {
					log.Ctx(ctx).Warn().Err(err).Str("card_id", scan.CardID).Msg("Failed to schedule retry")
				}
			}
			return
		}
	}

	if err := scan.Acknowledge(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("card_id", scan.CardID).Msg("Failed to acknowledge scan")
	}
}

func (d *Dispatcher) process(ctx context.Context, scan reader.Scan) error {
	res, err := d.service.RegisterOrIdentify(ctx, scan.CardID)
	if err != nil {
		return err
	}

	// The first scan of an unknown card only enrolls it.
	if res.Created {
		d.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelWarning,
			Title:   "Unregistered card",
			Message: fmt.Sprintf("Unregistered card %s detected. It is now registered to employee %s.", res.CardID, res.EmployeeID),
		})
		return nil
	}

	event, err := d.service.RecordScanAt(ctx, res.EmployeeID, scan.ReceivedAt)
	if err != nil && !errors.Is(err, core.ErrAuditTrail) {
		return err
	}

	d.notifier.Notify(ctx, notify.Notification{
		Level:   notify.LevelInfo,
		Title:   "Access granted",
		Message: describe(event),
	})
	// The session row is written; only the audit line is missing.
	if err != nil {
		d.notifier.Notify(ctx, notify.Notification{
			Level:   notify.LevelWarning,
			Title:   "Audit log",
			Message: fmt.Sprintf("Event for employee %s was recorded but not written to the audit log: %v", event.EmployeeID, err),
		})
	}
	return nil
}

// retryable errors leave the scan unacknowledged; a transport with redelivery
// brings it back. Replaying anything else would fail the same way.
func retryable(err error) bool {
	return errors.Is(err, core.ErrStorage) || errors.Is(err, core.ErrSessionConflict)
}

func describe(e model.RecordedEvent) string {
	action := "checked in"
	if e.Outcome == model.CheckedOut {
		action = "checked out"
	}
	return fmt.Sprintf("Employee %s %s at %s (%s)",
		e.EmployeeID, action, e.Rounded.Format(model.ClockLayout), e.Raw.Format(model.ClockLayoutFull))
}
