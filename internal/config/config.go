package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// The attendance process runs next to the reader, so everything is taken from
// environment variables. cmd/report additionally accepts flags bound into viper.

type Config struct {
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBInstrumented bool   `mapstructure:"DB_INSTRUMENTED"`
	ServerPort     string `mapstructure:"SERVER_PORT"`
	IsLocalDev     bool   `mapstructure:"IS_LOCAL_DEV"`
	Timezone       string `mapstructure:"TIMEZONE"`
	StoreBackend   string `mapstructure:"STORE_BACKEND"`

	AuditLogFile string `mapstructure:"AUDIT_LOG_FILE"`
	ReportDir    string `mapstructure:"REPORT_DIR"`

	ReaderTransport   string        `mapstructure:"READER_TRANSPORT"`
	ReaderDevice      string        `mapstructure:"READER_DEVICE"`
	ReaderBaudRate    int           `mapstructure:"READER_BAUD_RATE"`
	ReaderReadTimeout time.Duration `mapstructure:"READER_READ_TIMEOUT"`

	ScanSQSQueueURL   string `mapstructure:"SCAN_SQS_QUEUE_URL"`
	EventsSQSQueueURL string `mapstructure:"EVENTS_SQS_QUEUE_URL"`
	AWSRegion         string `mapstructure:"AWS_REGION"`
	AWSEndpoint       string `mapstructure:"AWS_ENDPOINT"`
	ReportEmailFrom   string `mapstructure:"REPORT_EMAIL_FROM"`
	ReportEmailTo     string `mapstructure:"REPORT_EMAIL_TO"`

	TraceExporter string `mapstructure:"TRACE_EXPORTER"`
	OTLPEndpoint  string `mapstructure:"OTLP_ENDPOINT"`
}

const (
	TransportSerial = "serial"
	TransportSQS    = "sqs"
	TransportNone   = "none"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "attendance_db")
	v.SetDefault("DB_INSTRUMENTED", false)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("IS_LOCAL_DEV", false)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("STORE_BACKEND", StorePostgres)
	v.SetDefault("AUDIT_LOG_FILE", "attendance_log.txt")
	v.SetDefault("REPORT_DIR", "reports")
	v.SetDefault("READER_TRANSPORT", TransportSerial)
	v.SetDefault("READER_DEVICE", "/dev/ttyUSB0")
	v.SetDefault("READER_BAUD_RATE", 9600)
	v.SetDefault("READER_READ_TIMEOUT", time.Second)
	v.SetDefault("SCAN_SQS_QUEUE_URL", "")
	v.SetDefault("EVENTS_SQS_QUEUE_URL", "")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	v.SetDefault("REPORT_EMAIL_FROM", "")
	v.SetDefault("REPORT_EMAIL_TO", "")
	v.SetDefault("TRACE_EXPORTER", "none")
	v.SetDefault("OTLP_ENDPOINT", "jaeger:4317")
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	return Load(viper.New())
}

// Load applies defaults and environment overrides to v and unmarshals the result.
func Load(v *viper.Viper) (config Config, err error) {
	SetDefaults(v)

	// Read in environment variables that match the keys.
	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, err
	}
	return config, config.Validate()
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("%w: unknown STORE_BACKEND %q", ErrInvalidConfig, c.StoreBackend)
	}

	switch c.ReaderTransport {
	case TransportSerial:
		if c.ReaderDevice == "" {
			return fmt.Errorf("%w: READER_DEVICE is required for the serial transport", ErrInvalidConfig)
		}
		if c.ReaderBaudRate <= 0 {
			return fmt.Errorf("%w: READER_BAUD_RATE must be positive", ErrInvalidConfig)
		}
	case TransportSQS:
		if c.ScanSQSQueueURL == "" {
			return fmt.Errorf("%w: SCAN_SQS_QUEUE_URL is required for the sqs transport", ErrInvalidConfig)
		}
	case TransportNone:
	default:
		return fmt.Errorf("%w: unknown READER_TRANSPORT %q", ErrInvalidConfig, c.ReaderTransport)
	}

	if c.ReaderTransport != TransportNone && c.ReaderReadTimeout <= 0 {
		return fmt.Errorf("%w: READER_READ_TIMEOUT must be positive", ErrInvalidConfig)
	}

	switch c.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		return fmt.Errorf("%w: unknown TRACE_EXPORTER %q", ErrInvalidConfig, c.TraceExporter)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Location resolves TIMEZONE. All attendance timestamps are taken in this zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ReportMailEnabled reports whether daily reports are also e-mailed.
func (c Config) ReportMailEnabled() bool {
	return c.ReportEmailFrom != "" && c.ReportEmailTo != ""
}
