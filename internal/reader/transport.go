package reader

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransportFatal means the transport cannot deliver any more scans.
	ErrTransportFatal = errors.New("transport closed")
	// ErrTransportTransient is a single bad read; the next read may succeed.
	ErrTransportTransient = errors.New("bad read")
	// ErrReadTimeout means no card arrived within the read timeout.
	ErrReadTimeout = errors.New("read timeout")
)

// Scan is one card identifier delivered by a transport.
type Scan struct {
	CardID     string
	ReceivedAt time.Time

	// Ack confirms the scan was handled. Nil for transports without redelivery.
	Ack func(ctx context.Context) error
	// Retry asks for redelivery after the given delay. Nil when unsupported.
	Retry func(ctx context.Context, after time.Duration) error
	// TraceContext returns ctx carrying the upstream trace, if the transport has one.
	TraceContext func(ctx context.Context) context.Context
}

// Acknowledge calls Ack when set.
func (s Scan) Acknowledge(ctx context.Context) error {
	if s.Ack == nil {
		return nil
	}
	return s.Ack(ctx)
}

// Transport delivers card identifiers. ReadCard blocks for at most the read timeout
// and returns ErrReadTimeout when nothing arrived, so callers can observe
// cancellation between reads. Close is idempotent.
type Transport interface {
	Name() string
	ReadCard(ctx context.Context) (Scan, error)
	Close() error
}
