// report writes the daily attendance report for one date and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"rfid.attendance/internal/app"
	"rfid.attendance/internal/config"
	"rfid.attendance/internal/core"
	"rfid.attendance/pkg/logger"
)

func main() {
	fs := pflag.NewFlagSet("report", pflag.ExitOnError)
	date := fs.String("date", "", "report date as YYYY-MM-DD (default today)")
	configFile := fs.String("config", "", "optional config file (env, yaml, json)")
	fs.String("report-dir", "", "directory for report files (overrides REPORT_DIR)")
	_ = fs.Parse(os.Args[1:])

	v := viper.New()
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Could not read config file: %v\n", err)
			os.Exit(1)
		}
	}
	if fs.Changed("report-dir") {
		_ = v.BindPFlag("REPORT_DIR", fs.Lookup("report-dir"))
	}

	cfg, err := config.Load(v)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	logger.Setup(cfg.IsLocalDev)

	// The report command never reads cards.
	cfg.ReaderTransport = config.TransportNone

	if err := run(context.Background(), cfg, *date); err != nil {
		log.Error().Err(err).Msg("Report generation failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, date string) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Close()

	day, err := application.Service.ParseDate(date)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	path, err := application.Service.GenerateDailyReport(ctx, day)
	switch {
	case errors.Is(err, core.ErrReportDelivery):
		log.Warn().Err(err).Str("path", path).Msg("Report written but not mailed")
	case err != nil:
		return err
	}
	fmt.Printf("Daily report generated: %s\n", path)
	return nil
}
