package core

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"rfid.attendance/internal/core/model"
)

type ReportMailer interface {
	SendDailyReport(ctx context.Context, date time.Time, body []byte) error
}

// SESClient is the part of the SES client the mailer uses.
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESReportMailer struct {
	client     SESClient
	sender     string
	recipients []string
}

func NewSESReportMailer(client SESClient, sender string, recipients ...string) *SESReportMailer {
	return &SESReportMailer{client: client, sender: sender, recipients: recipients}
}

func (s *SESReportMailer) SendDailyReport(ctx context.Context, date time.Time, body []byte) error {
	tracer := otel.Tracer("ses-report-mailer")
	ctx, span := tracer.Start(ctx, "send_daily_report", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	day := date.Format(model.DateLayout)
	span.SetAttributes(attribute.String("app.reportDate", day))

	input := &ses.SendEmailInput{
		Source: aws.String(s.sender),
		Destination: &types.Destination{
			ToAddresses: s.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("Attendance report %s", day)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(string(body)),
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
