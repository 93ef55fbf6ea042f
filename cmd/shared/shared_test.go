package shared

import (
	"context"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"

	"pcr1024/quicmq/pkg/config"
)

func TestGetCommonFlags(t *testing.T) {
	t.Parallel()

	flags := GetCommonFlags()

	if flags == nil {
		t.Fatal("GetCommonFlags() returned nil")
	}

	if len(flags) == 0 {
		t.Error("GetCommonFlags() should return at least one flag")
	}

	// Check for expected flags
	flagNames := make(map[string]bool)
	for _, flag := range flags {
		if names := flag.Names(); len(names) > 0 {
			flagNames[names[0]] = true
		}
	}

	expectedFlags := []string{
		HostFlag, PortFlag, BindFlag, TopicFlag, ClientIDFlag,
		ProfileFlag, VerifyFlag, VerboseFlag,
	}
	for _, name := range expectedFlags {
		if !flagNames[name] {
			t.Errorf("expected flag %q not found", name)
		}
	}
}

// runWithFlags parses args through the common flags and hands the parsed
// command to GetClientConfig.
func runWithFlags(t *testing.T, args []string) (*config.Client, error) {
	t.Helper()

	var cfg *config.Client
	var cfgErr error

	cmd := &cli.Command{
		Name:  "test",
		Flags: GetCommonFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, cfgErr = GetClientConfig(c, "test")
			return nil
		},
	}

	if err := cmd.Run(context.Background(), append([]string{"test"}, args...)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	return cfg, cfgErr
}

func TestGetClientConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := runWithFlags(t, nil)
	if err != nil {
		t.Fatalf("GetClientConfig() error = %v", err)
	}

	if cfg.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", cfg.Host)
	}
	if cfg.Port != 4433 {
		t.Errorf("Port = %d, want 4433", cfg.Port)
	}
	if cfg.Topic != "test_signal" {
		t.Errorf("Topic = %q, want test_signal", cfg.Topic)
	}
	if cfg.Profile != config.ProfileLowLatency {
		t.Errorf("Profile = %s, want low_latency", cfg.Profile)
	}
	if cfg.VerifyServerCert {
		t.Error("VerifyServerCert = true, want false by default")
	}
	if !strings.HasPrefix(cfg.ClientID, "quicmq-test-") {
		t.Errorf("ClientID = %q, want generated quicmq-test- prefix", cfg.ClientID)
	}
	if cfg.Logger == nil {
		t.Error("Logger = nil")
	}
}

func TestGetClientConfig_CustomFlags(t *testing.T) {
	t.Parallel()

	cfg, err := runWithFlags(t, []string{
		"--host", "broker.example.com",
		"--port", "14433",
		"--bind", "127.0.0.1",
		"--topic", "bench/latency",
		"--client-id", "bench-42",
		"--profile", "scavenger",
		"--verify",
		"--verbose",
	})
	if err != nil {
		t.Fatalf("GetClientConfig() error = %v", err)
	}

	if cfg.Host != "broker.example.com" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 14433 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.BindAddr != "127.0.0.1" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.Topic != "bench/latency" {
		t.Errorf("Topic = %q", cfg.Topic)
	}
	if cfg.ClientID != "bench-42" {
		t.Errorf("ClientID = %q", cfg.ClientID)
	}
	if cfg.Profile != config.ProfileScavenger {
		t.Errorf("Profile = %s", cfg.Profile)
	}
	if !cfg.VerifyServerCert {
		t.Error("VerifyServerCert = false despite --verify")
	}
	if !cfg.Verbose {
		t.Error("Verbose = false despite --verbose")
	}
}

func TestGetClientConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{
			name: "unknown profile",
			args: []string{"--profile", "turbo"},
		},
		{
			name: "port out of range",
			args: []string{"--port", "0"},
		},
		{
			name: "empty host",
			args: []string{"--host", ""},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := runWithFlags(t, tc.args); err == nil {
				t.Errorf("GetClientConfig(%v) = nil error", tc.args)
			}
		})
	}
}
