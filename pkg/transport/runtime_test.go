package transport

import (
	"errors"
	"fmt"
	"testing"

	"pcr1024/quicmq/mocks"
	"pcr1024/quicmq/pkg/config"
	"pcr1024/quicmq/pkg/provider"
)

// Runtime tests share the process-wide binding and therefore do not run
// in parallel.

func testClientConfig(deps *config.Dependencies) *config.Client {
	return &config.Client{
		Host:    "localhost",
		Port:    4433,
		Profile: config.ProfileLowLatency,
		Deps:    deps,
	}
}

func TestInit_Idempotent(t *testing.T) {
	defer Cleanup()

	first := mocks.NewMockProvider()
	if err := Init(first); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !first.Opened() {
		t.Fatal("provider not opened")
	}

	// a second init before cleanup is a no-op success
	second := mocks.NewMockProvider()
	if err := Init(second); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	if second.Opened() {
		t.Error("second provider was opened despite existing binding")
	}

	Cleanup()
	if first.Opened() {
		t.Error("provider still open after Cleanup")
	}

	// cleanup twice is safe
	Cleanup()
	if first.CloseCount() != 1 {
		t.Errorf("CloseCount() = %d, want 1", first.CloseCount())
	}
}

func TestInit_NilProvider(t *testing.T) {
	defer Cleanup()

	if err := Init(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Init(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestInit_OpenFailure(t *testing.T) {
	defer Cleanup()

	p := mocks.NewMockProvider()
	p.OpenErr = fmt.Errorf("library missing")

	if err := Init(p); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Init() error = %v, want ErrProviderUnavailable", err)
	}

	// the failed init left no binding behind
	if err := Init(mocks.NewMockProvider()); err != nil {
		t.Errorf("Init() after failed init error = %v", err)
	}
}

func TestConfigure_RequiresInit(t *testing.T) {
	Cleanup()

	_, err := Configure(testClientConfig(nil))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Configure() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestConfigure_OpensHandles(t *testing.T) {
	defer Cleanup()

	p := mocks.NewMockProvider()
	if err := Init(p); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	cfg := testClientConfig(nil)
	cfg.Profile = config.ProfileScavenger

	rt, err := Configure(cfg)
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	regs := p.Registrations()
	if len(regs) != 1 {
		t.Fatalf("registrations = %d, want 1", len(regs))
	}
	if regs[0].Profile != provider.ProfileScavenger {
		t.Errorf("profile = %s, want scavenger", regs[0].Profile)
	}

	// the configuration pins ALPN mqtt, no idle timeout, no verification
	mockConf := rt.conf.(*mocks.MockConfiguration)
	if mockConf.Settings.ALPN != "mqtt" {
		t.Errorf("ALPN = %q, want mqtt", mockConf.Settings.ALPN)
	}
	if mockConf.Settings.IdleTimeout != 0 {
		t.Errorf("IdleTimeout = %v, want 0", mockConf.Settings.IdleTimeout)
	}
	if mockConf.Settings.Credentials.VerifyServerCert {
		t.Error("VerifyServerCert = true, want false by default")
	}

	// Close releases configuration and registration
	rt.Close()
	if mockConf.CloseCount() != 1 {
		t.Errorf("configuration CloseCount() = %d, want 1", mockConf.CloseCount())
	}
	if regs[0].CloseCount() != 1 {
		t.Errorf("registration CloseCount() = %d, want 1", regs[0].CloseCount())
	}
}

func TestConfigure_RegistrationFailure(t *testing.T) {
	defer Cleanup()

	p := mocks.NewMockProvider()
	p.RegistrationErr = fmt.Errorf("profile rejected")
	if err := Init(p); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, err := Configure(testClientConfig(nil))
	if !errors.Is(err, ErrRegistrationFailed) {
		t.Errorf("Configure() error = %v, want ErrRegistrationFailed", err)
	}
}

func TestConfigure_ConfigurationFailure_UnwindsRegistration(t *testing.T) {
	defer Cleanup()

	p := mocks.NewMockProvider()
	if err := Init(p); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// fail configuration on the registration Configure opens
	p.ConfigurationErr = fmt.Errorf("alpn rejected")

	_, err := Configure(testClientConfig(nil))
	if !errors.Is(err, ErrConfigurationFailed) {
		t.Fatalf("Configure() error = %v, want ErrConfigurationFailed", err)
	}

	// the registration opened before the failure was closed again
	regs := p.Registrations()
	if len(regs) != 1 || regs[0].CloseCount() != 1 {
		t.Errorf("registration not unwound")
	}
}

func TestConfigure_CredentialFailure(t *testing.T) {
	defer Cleanup()

	p := mocks.NewMockProvider()
	if err := Init(p); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	p.ConfigurationErr = fmt.Errorf("no client credentials: %w", provider.ErrCredentials)

	_, err := Configure(testClientConfig(nil))
	if !errors.Is(err, ErrCredentialFailed) {
		t.Errorf("Configure() error = %v, want ErrCredentialFailed", err)
	}
}
