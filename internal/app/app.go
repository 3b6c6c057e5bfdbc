package app

import (
	"context"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"rfid.attendance/internal/config"
	"rfid.attendance/internal/core"
	"rfid.attendance/internal/ports/audit"
	"rfid.attendance/internal/ports/messaging"
	"rfid.attendance/internal/ports/notify"
	"rfid.attendance/internal/ports/repository"
	"rfid.attendance/internal/reader"
	"rfid.attendance/pkg/aws"
	"rfid.attendance/pkg/database"
)

// App holds the wired components shared by the binaries.
type App struct {
	Config   config.Config
	Service  *core.AttendanceService
	Feed     *notify.Feed
	Notifier notify.Notifier

	awsCfg  *awssdk.Config
	closers []func() error
}

// New opens the store and audit trail and wires the attendance service. A store
// that cannot be opened is returned as an error; callers treat it as fatal.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Feed: notify.NewFeed(200)}
	a.Notifier = notify.Clocked{Next: notify.Multi{notify.LogNotifier{}, a.Feed}}

	repo, err := a.openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	trail, err := audit.OpenFileTrail(cfg.AuditLogFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening audit trail: %w", err)
	}
	a.closers = append(a.closers, trail.Close)

	if aws.Enabled(cfg) {
		awsCfg, err := aws.NewAWSConfig(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		a.awsCfg = &awsCfg
	}

	var publisher core.EventPublisher
	if cfg.EventsSQSQueueURL != "" {
		publisher = messaging.NewSQSProducer(sqs.NewFromConfig(*a.awsCfg), cfg.EventsSQSQueueURL)
	}

	opts := []core.Option{core.WithLocation(loc)}
	if cfg.ReportMailEnabled() {
		mailer := core.NewSESReportMailer(ses.NewFromConfig(*a.awsCfg), cfg.ReportEmailFrom, splitList(cfg.ReportEmailTo)...)
		opts = append(opts, core.WithReportMailer(mailer))
	}

	a.Service = core.NewAttendanceService(
		core.NewIdentityRegistry(repo),
		core.NewLedger(repo, trail, publisher),
		core.NewReportAggregator(repo),
		core.NewReportWriter(cfg.ReportDir),
		opts...,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (repository.Repository, error) {
	if cfg.StoreBackend == config.StoreMemory {
		log.Warn().Msg("Using the in-memory store. Attendance data is lost on exit.")
		return repository.NewMemoryRepository(), nil
	}

	db, err := database.NewConnection(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	log.Info().Msg("Successfully connected to the database.")

	if err := repository.Migrate(ctx, db); err != nil {
		return nil, fmt.Errorf("error migrating schema: %w", err)
	}

	loc, _ := cfg.Location()
	return repository.NewPostgresRepository(db, loc), nil
}

// NewTransport opens the configured scan transport; nil when READER_TRANSPORT is none.
func (a *App) NewTransport() (reader.Transport, error) {
	switch a.Config.ReaderTransport {
	case config.TransportSerial:
		t, err := reader.OpenSerial(reader.SerialConfig{
			Device:      a.Config.ReaderDevice,
			BaudRate:    a.Config.ReaderBaudRate,
			ReadTimeout: a.Config.ReaderReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		return t, nil
	case config.TransportSQS:
		return reader.NewSQSTransport(sqs.NewFromConfig(*a.awsCfg), a.Config.ScanSQSQueueURL, a.Config.ReaderReadTimeout), nil
	default:
		return nil, nil
	}
}

// Close releases everything New opened, last opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error during close")
		}
	}
	a.closers = nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
