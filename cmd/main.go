// Package main is the entry point for quicmq, the MQTT-over-QUIC latency
// benchmark tool.
package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"pcr1024/quicmq/cmd/pub"
	"pcr1024/quicmq/cmd/sub"
	"pcr1024/quicmq/cmd/version"
	"pcr1024/quicmq/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:        "quicmq",
		Description: "MQTT-over-QUIC latency benchmarks",
		Commands: []*cli.Command{
			pub.GetCommand(),
			sub.GetCommand(),
			version.GetCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger := log.NewLogger(false)
		logger.Errorf("Run: %s", err)
	}
}
