// Package wifimgr implements the gateway's Wi-Fi connection manager: a
// boot-time STA-connect-or-AP-fallback state machine, grounded on
// original_source's gateway_net/src/wifi_init.c. wifi_init.c drives the
// ESP-IDF Wi-Fi driver through an injectable "ops" struct purely for host
// testability — this package keeps that shape (the Port interface below)
// but has no Go library in the example corpus to delegate the underlying
// radio calls to, since no pack repo implements an 802.11 STA/AP state
// machine; Port's concrete production implementation is a platform
// adapter outside this module's scope, matched here by a test double.
package wifimgr

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/gatewaystate"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/storage/configrepo"
)

// Port is the platform boundary for Wi-Fi radio operations.
type Port interface {
	// ConnectSTA attempts to join ssid/password, retrying on disconnect
	// up to maxRetry times, and blocks until an IP lease or timeout.
	// It returns nil only on a successful IP acquisition.
	ConnectSTA(ctx context.Context, ssid, password string, maxRetry int, timeout time.Duration) error
	// StartAP brings up a WPA2 AP with the given parameters.
	StartAP(ctx context.Context, ssid, password string, channel, maxConn int) error
	// SoftAPMACSuffix returns the last two octets of the SoftAP MAC as
	// uppercase hex, used to derive the fallback AP SSID.
	SoftAPMACSuffix() string
	// Scan performs a synchronous network scan.
	Scan(ctx context.Context) ([]Network, error)
}

// Network is one scan result.
type Network struct {
	SSID string `json:"ssid"`
	RSSI int32  `json:"rssi"`
	Auth string `json:"auth"`
}

// Manager drives the Wi-Fi state machine and publishes transitions into
// the gateway state store.
type Manager struct {
	port   Port
	repo   *configrepo.Repo
	state  *gatewaystate.Store
	defSSID, defPassword string
}

// New creates a Wi-Fi manager. defSSID/defPassword are the compile-time
// default credentials used when no valid persisted pair exists.
func New(port Port, repo *configrepo.Repo, state *gatewaystate.Store, defSSID, defPassword string) *Manager {
	return &Manager{port: port, repo: repo, state: state, defSSID: defSSID, defPassword: defPassword}
}

// Run executes the boot-time state machine once: load credentials
// (persisted, falling back to compile-time default), attempt STA
// connect, and on failure fall back to AP mode. It publishes the
// resulting Wi-Fi state into the store at each transition. Returns nil
// once a terminal state (connected or AP fallback) is reached; the
// manager never retries further on its own after that.
func (m *Manager) Run(ctx context.Context) error {
	ssid, password := m.loadCredentialsOrDefault(ctx)

	m.state.SetWifi(gwtypes.WifiState{})

	err := m.port.ConnectSTA(ctx, ssid, password, config.WifiSTAMaxRetry, config.WifiSTAConnectTimeout)
	if err == nil {
		m.state.SetWifi(gwtypes.WifiState{
			STAConnected:     true,
			FallbackAPActive: false,
			LoadedFromNVS:    ssid != m.defSSID,
			ActiveSSID:       ssid,
		})
		log.Info().Str("ssid", ssid).Msg("wifi sta connected")
		return nil
	}

	log.Warn().Err(err).Str("ssid", ssid).Msg("wifi sta connect failed, falling back to ap")

	apSSID := fmt.Sprintf("ZigbeeGW-%s", m.port.SoftAPMACSuffix())
	if apErr := m.port.StartAP(ctx, apSSID, config.FallbackAPPassword, config.FallbackAPChannel, config.FallbackAPMaxConn); apErr != nil {
		return status.Wrap(status.Fail, fmt.Errorf("start fallback ap: %w", apErr))
	}

	m.state.SetWifi(gwtypes.WifiState{
		STAConnected:     false,
		FallbackAPActive: true,
		LoadedFromNVS:    false,
		ActiveSSID:       apSSID,
	})
	return nil
}

func (m *Manager) loadCredentialsOrDefault(ctx context.Context) (string, string) {
	creds, found, err := m.repo.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load wifi credentials, using default")
		return m.defSSID, m.defPassword
	}
	if !found {
		return m.defSSID, m.defPassword
	}
	return creds.SSID, creds.Password
}

// Save persists new credentials (validated by configrepo.Validate). The
// caller (the wifi_save use-case) is responsible for triggering the
// subsequent reboot.
func (m *Manager) Save(ctx context.Context, ssid, password string) error {
	return m.repo.Save(ctx, configrepo.Credentials{SSID: ssid, Password: password})
}

// Scan performs a synchronous scan, switching to APSTA first if the
// radio is currently AP-only.
func (m *Manager) Scan(ctx context.Context) ([]Network, error) {
	nets, err := m.port.Scan(ctx)
	if err != nil {
		return nil, status.Wrap(status.Fail, fmt.Errorf("wifi scan: %w", err))
	}
	return nets, nil
}
