// Package pub implements the publisher benchmark. It connects to the
// broker through the QUIC shim and publishes timestamped JSON payloads on
// a topic at a fixed interval.
package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"pcr1024/quicmq/cmd/shared"
	"pcr1024/quicmq/pkg/client"
	"pcr1024/quicmq/pkg/log"
)

// IntervalFlag is the name of the flag for the publish interval.
const IntervalFlag = "interval"

// CountFlag is the name of the flag bounding the number of messages.
const CountFlag = "count"

// sample is the payload carried by each benchmark message.
type sample struct {
	Timestamp float64 `json:"timestamp"`
}

// GetCommand returns the CLI command for the publisher benchmark.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "pub",
		Usage: "Publish timestamped messages at a fixed interval",
		Action: func(parent context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithCancel(parent)
			defer cancel()

			shared.SetupSignalHandling(cancel)

			cfg, err := shared.GetClientConfig(cmd, "pub")
			if err != nil {
				return err
			}

			c, err := client.New(cfg)
			if err != nil {
				return fmt.Errorf("client.New: %w", err)
			}

			if err := c.Connect(); err != nil {
				return fmt.Errorf("connecting: %w", err)
			}
			defer func() {
				if err := c.Disconnect(); err != nil {
					cfg.Logger.Errorf("Disconnect: %s", err)
				}
			}()

			interval := cmd.Duration(IntervalFlag)
			count := cmd.Int(CountFlag)

			return publishLoop(ctx, c, cfg.Topic, interval, int(count), cfg.Logger)
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:     IntervalFlag,
			Aliases:  []string{"i"},
			Usage:    "Time between messages",
			Value:    time.Second,
			Required: false,
		},
		&cli.IntFlag{
			Name:     CountFlag,
			Aliases:  []string{"n"},
			Usage:    "Number of messages to publish, 0 for unlimited",
			Value:    0,
			Required: false,
		},
	}
	return append(flags, shared.GetCommonFlags()...)
}

// publishLoop publishes one message per tick until the context is
// canceled or count messages are out.
func publishLoop(ctx context.Context, c *client.Client, topic string, interval time.Duration, count int, logger *log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	published := 0
	for {
		payload, err := json.Marshal(sample{
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		})
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}

		if err := c.Publish(topic, payload); err != nil {
			return fmt.Errorf("publishing: %w", err)
		}
		logger.Debugf("Published: %s", payload)

		published++
		if count > 0 && published >= count {
			log.Infof("Published %d messages", published)
			return nil
		}

		select {
		case <-ctx.Done():
			log.Infof("Published %d messages", published)
			return nil
		case <-ticker.C:
		}
	}
}
