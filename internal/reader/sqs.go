package reader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"rfid.attendance/pkg/telemetry"
)

type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// SQSTransport receives scans from remote readers through a queue. The message body
// is the card id. A message is deleted only when the scan is acknowledged, so an
// unprocessed scan is redelivered after the visibility timeout.
type SQSTransport struct {
	client      SQSClient
	queueURL    string
	waitSeconds int32
	pending     []types.Message
	now         func() time.Time
	closed      atomic.Bool
	// errorBackoff is the pause after a failed receive before it is reported.
	errorBackoff time.Duration
}

// NewSQSTransport long-polls queueURL for up to wait per receive (1 to 20 seconds).
func NewSQSTransport(client SQSClient, queueURL string, wait time.Duration) *SQSTransport {
	seconds := int32(wait / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if seconds > 20 {
		seconds = 20
	}
	return &SQSTransport{
		client:       client,
		queueURL:     queueURL,
		waitSeconds:  seconds,
		now:          time.Now,
		errorBackoff: time.Second,
	}
}

func (t *SQSTransport) Name() string { return "sqs" }

func (t *SQSTransport) ReadCard(ctx context.Context) (Scan, error) {
	if t.closed.Load() {
		return Scan{}, fmt.Errorf("%w: transport closed", ErrTransportFatal)
	}

	if len(t.pending) == 0 {
		output, err := t.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:                    aws.String(t.queueURL),
			MaxNumberOfMessages:         10,
			WaitTimeSeconds:             t.waitSeconds,
			MessageAttributeNames:       []string{"All"}, // Request attributes to get trace context
			MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameSentTimestamp},
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Scan{}, ctxErr
			}
			select {
			case <-ctx.Done():
				return Scan{}, ctx.Err()
			case <-time.After(t.errorBackoff):
			}
			return Scan{}, fmt.Errorf("%w: receiving messages: %w", ErrTransportTransient, err)
		}
		if len(output.Messages) == 0 {
			return Scan{}, ErrReadTimeout
		}
		t.pending = output.Messages
	}

	msg := t.pending[0]
	t.pending = t.pending[1:]

	ack := t.deleteFunc(msg.ReceiptHandle)
	cardID := strings.TrimSpace(aws.ToString(msg.Body))
	if cardID == "" {
		// Nothing to retry; drop it.
		_ = ack(ctx)
		return Scan{}, fmt.Errorf("%w: empty message %s", ErrTransportTransient, aws.ToString(msg.MessageId))
	}

	return Scan{
		CardID:     cardID,
		ReceivedAt: t.sentAt(msg),
		Ack:        ack,
		Retry:      t.retryFunc(msg.ReceiptHandle),
		TraceContext: func(ctx context.Context) context.Context {
			return telemetry.ExtractTraceContext(ctx, msg)
		},
	}, nil
}

func (t *SQSTransport) deleteFunc(receiptHandle *string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := t.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(t.queueURL),
			ReceiptHandle: receiptHandle,
		})
		return err
	}
}

func (t *SQSTransport) retryFunc(receiptHandle *string) func(context.Context, time.Duration) error {
	return func(ctx context.Context, after time.Duration) error {
		_, err := t.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(t.queueURL),
			ReceiptHandle:     receiptHandle,
			VisibilityTimeout: int32(after / time.Second),
		})
		return err
	}
}

// sentAt is when the remote reader enqueued the scan, falling back to now.
func (t *SQSTransport) sentAt(msg types.Message) time.Time {
	raw, ok := msg.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)]
	if !ok {
		return t.now()
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return t.now()
	}
	return time.UnixMilli(ms)
}

func (t *SQSTransport) Close() error {
	t.closed.Store(true)
	return nil
}
