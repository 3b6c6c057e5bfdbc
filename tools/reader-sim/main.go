// reader-sim stands in for a remote card reader: it sends card ids to the scan
// queue consumed by READER_TRANSPORT=sqs. Cards come from the arguments, or one
// per line from stdin when none are given.
package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"rfid.attendance/internal/config"
	appaws "rfid.attendance/pkg/aws"
	"rfid.attendance/pkg/logger"
)

func main() {
	interval := pflag.Duration("interval", 0, "pause between scans")
	pflag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	logger.Setup(true)

	if cfg.ScanSQSQueueURL == "" {
		log.Fatal().Msg("SCAN_SQS_QUEUE_URL is required")
	}

	ctx := context.Background()
	awsCfg, err := appaws.NewAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}
	client := sqs.NewFromConfig(awsCfg)

	cards := pflag.Args()
	if len(cards) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if card := strings.TrimSpace(scanner.Text()); card != "" {
				cards = append(cards, card)
			}
		}
	}

	for i, card := range cards {
		if i > 0 && *interval > 0 {
			time.Sleep(*interval)
		}
		out, err := client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(cfg.ScanSQSQueueURL),
			MessageBody: aws.String(card),
		})
		if err != nil {
			log.Error().Err(err).Str("card_id", card).Msg("Failed to send scan")
			continue
		}
		log.Info().Str("card_id", card).Str("message_id", aws.ToString(out.MessageId)).Msg("Scan sent")
	}
}
