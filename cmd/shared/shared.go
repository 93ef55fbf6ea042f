// Package shared provides common CLI flag definitions and utility
// functions used across quicmq's command-line interface.
package shared

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"pcr1024/quicmq/pkg/config"
	"pcr1024/quicmq/pkg/log"
)

const categoryCommon = "common"

// HostFlag is the name of the flag for the broker host.
const HostFlag = "host"

// PortFlag is the name of the flag for the broker port.
const PortFlag = "port"

// BindFlag is the name of the flag for the local bind address.
const BindFlag = "bind"

// TopicFlag is the name of the flag for the MQTT topic.
const TopicFlag = "topic"

// ClientIDFlag is the name of the flag for the MQTT client identifier.
const ClientIDFlag = "client-id"

// ProfileFlag is the name of the flag for the QUIC execution profile.
const ProfileFlag = "profile"

// VerifyFlag is the name of the flag enabling server certificate checks.
const VerifyFlag = "verify"

// VerboseFlag is the name of the flag to enable verbose error logging.
const VerboseFlag = "verbose"

// GetCommonFlags returns the CLI flags shared by the pub and sub commands.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     HostFlag,
			Usage:    "Broker host",
			Category: categoryCommon,
			Value:    "localhost",
			Required: false,
		},
		&cli.IntFlag{
			Name:     PortFlag,
			Aliases:  []string{"p"},
			Usage:    "Broker port",
			Category: categoryCommon,
			Value:    4433,
			Required: false,
		},
		&cli.StringFlag{
			Name:     BindFlag,
			Usage:    "Local address to bind, leave empty for an ephemeral port",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
		&cli.StringFlag{
			Name:     TopicFlag,
			Aliases:  []string{"t"},
			Usage:    "MQTT topic",
			Category: categoryCommon,
			Value:    "test_signal",
			Required: false,
		},
		&cli.StringFlag{
			Name:     ClientIDFlag,
			Usage:    "MQTT client identifier, leave empty for a generated one",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
		&cli.StringFlag{
			Name:     ProfileFlag,
			Usage:    "QUIC execution profile (low_latency|scavenger|max_throughput|real_time)",
			Category: categoryCommon,
			Value:    "low_latency",
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerifyFlag,
			Usage:    "Validate the broker's TLS certificate",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose error logging",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
	}
}

// GetClientConfig assembles the client configuration from the parsed
// common flags.
func GetClientConfig(cmd *cli.Command, role string) (*config.Client, error) {
	profile, err := config.ParseProfile(cmd.String(ProfileFlag))
	if err != nil {
		return nil, fmt.Errorf("'--%s': %w", ProfileFlag, err)
	}

	clientID := cmd.String(ClientIDFlag)
	if clientID == "" {
		clientID = fmt.Sprintf("quicmq-%s-%s", role, config.GenerateID())
	}

	cfg := &config.Client{
		Host:             cmd.String(HostFlag),
		Port:             int(cmd.Int(PortFlag)),
		BindAddr:         cmd.String(BindFlag),
		Topic:            cmd.String(TopicFlag),
		ClientID:         clientID,
		Profile:          profile,
		VerifyServerCert: cmd.Bool(VerifyFlag),
		Verbose:          cmd.Bool(VerboseFlag),
		Logger:           log.NewLogger(cmd.Bool(VerboseFlag)),
	}

	if errs := config.Validate(cfg); len(errs) > 0 {
		cfg.Logger.Errorf("Argument validation errors:")
		for _, err := range errs {
			cfg.Logger.Errorf(" - %s", err)
		}
		return nil, fmt.Errorf("exiting")
	}

	return cfg, nil
}
