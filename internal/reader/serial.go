package reader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.bug.st/serial"
)

// maxLineLength bounds a token; anything longer is line noise.
const maxLineLength = 256

// Port is the part of serial.Port the transport needs.
type Port interface {
	Read(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

type SerialConfig struct {
	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

// SerialTransport reads newline-terminated card ids from a serial RFID reader.
type SerialTransport struct {
	port    Port
	pending []byte
	buf     []byte
	now     func() time.Time
	// discarding drops input up to the next newline after an overlong line.
	discarding bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the configured device.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	port, err := serial.Open(cfg.Device, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrTransportFatal, cfg.Device, err)
	}
	t, err := NewSerialTransport(port, cfg.ReadTimeout)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

func NewSerialTransport(port Port, readTimeout time.Duration) (*SerialTransport, error) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		return nil, fmt.Errorf("%w: setting read timeout: %w", ErrTransportFatal, err)
	}
	return &SerialTransport{
		port: port,
		buf:  make([]byte, 64),
		now:  time.Now,
	}, nil
}

func (t *SerialTransport) Name() string { return "serial" }

// ReadCard returns the next non-empty token. A read that returns no bytes is the
// port's read timeout expiring and yields ErrReadTimeout.
func (t *SerialTransport) ReadCard(ctx context.Context) (Scan, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Scan{}, err
		}
		if t.closed.Load() {
			return Scan{}, fmt.Errorf("%w: port closed", ErrTransportFatal)
		}

		if line, ok := t.nextLine(); ok {
			if t.discarding {
				t.discarding = false
				continue
			}
			if len(line) > maxLineLength {
				return Scan{}, fmt.Errorf("%w: line exceeds %d bytes", ErrTransportTransient, maxLineLength)
			}
			if !utf8.Valid(line) {
				return Scan{}, fmt.Errorf("%w: card id is not valid UTF-8", ErrTransportTransient)
			}
			cardID := strings.TrimSpace(string(line))
			if cardID == "" {
				continue
			}
			return Scan{CardID: cardID, ReceivedAt: t.now()}, nil
		}

		switch {
		case t.discarding:
			t.pending = t.pending[:0]
		case len(t.pending) > maxLineLength:
			t.pending = t.pending[:0]
			t.discarding = true
			return Scan{}, fmt.Errorf("%w: line exceeds %d bytes", ErrTransportTransient, maxLineLength)
		}

		n, err := t.port.Read(t.buf)
		if err != nil {
			return Scan{}, fmt.Errorf("%w: %w", ErrTransportFatal, err)
		}
		if n == 0 {
			return Scan{}, ErrReadTimeout
		}
		t.pending = append(t.pending, t.buf[:n]...)
	}
}

func (t *SerialTransport) nextLine() ([]byte, bool) {
	i := bytes.IndexByte(t.pending, '\n')
	if i < 0 {
		return nil, false
	}
	line := make([]byte, i)
	copy(line, t.pending[:i])
	t.pending = append(t.pending[:0], t.pending[i+1:]...)
	return line, true
}

func (t *SerialTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		t.closeErr = t.port.Close()
	})
	return t.closeErr
}
