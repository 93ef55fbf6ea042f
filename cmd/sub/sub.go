// Package sub implements the subscriber benchmark. It subscribes to the
// benchmark topic and appends one latency sample per received message to
// a timestamped JSON-lines file.
package sub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"

	"pcr1024/quicmq/cmd/shared"
	"pcr1024/quicmq/pkg/client"
	"pcr1024/quicmq/pkg/log"
)

// LogDirFlag is the name of the flag for the latency log directory.
const LogDirFlag = "log-dir"

// GetCommand returns the CLI command for the subscriber benchmark.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "sub",
		Usage: "Subscribe and record per-message latency samples",
		Action: func(parent context.Context, cmd *cli.Command) error {
			ctx, cancel := context.WithCancel(parent)
			defer cancel()

			shared.SetupSignalHandling(cancel)

			cfg, err := shared.GetClientConfig(cmd, "sub")
			if err != nil {
				return err
			}

			latencyLog, err := log.NewLatencyLog(cmd.String(LogDirFlag))
			if err != nil {
				return fmt.Errorf("opening latency log: %w", err)
			}
			defer latencyLog.Close()

			log.Infof("Recording latency samples to %s", latencyLog.Path())

			c, err := client.New(cfg)
			if err != nil {
				return fmt.Errorf("client.New: %w", err)
			}

			var received atomic.Int64
			c.SetMessageHandler(func(topic string, payload []byte) {
				receivedTime := float64(time.Now().UnixNano()) / float64(time.Second)

				var msg struct {
					Timestamp float64 `json:"timestamp"`
				}
				if err := json.Unmarshal(payload, &msg); err != nil {
					cfg.Logger.Errorf("Invalid payload on %s: %s", topic, err)
					return
				}

				if err := latencyLog.Record(log.Sample{
					Timestamp:         msg.Timestamp,
					ReceivedTimestamp: receivedTime,
				}); err != nil {
					cfg.Logger.Errorf("Recording sample: %s", err)
					return
				}

				cfg.Logger.Debugf("Logged message %d from %s", received.Add(1), topic)
			})

			if err := c.Connect(); err != nil {
				return fmt.Errorf("connecting: %w", err)
			}
			defer func() {
				if err := c.Disconnect(); err != nil {
					cfg.Logger.Errorf("Disconnect: %s", err)
				}
			}()

			if err := c.Subscribe(cfg.Topic); err != nil {
				return fmt.Errorf("subscribing: %w", err)
			}
			log.Infof("Subscribed to %s", cfg.Topic)

			<-ctx.Done()
			log.Infof("Received %d messages", received.Load())
			return nil
		},
		Flags: getFlags(),
	}
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     LogDirFlag,
			Usage:    "Directory for latency log files",
			Value:    "logs",
			Required: false,
		},
	}
	return append(flags, shared.GetCommonFlags()...)
}
