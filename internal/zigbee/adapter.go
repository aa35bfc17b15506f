// Package zigbee is the gateway's Zigbee runtime adapter: it owns the
// EZSP/ASH radio transport (adapted wholesale from pkg/zigbee into
// transport_*.go and zcl.go) and translates its signals into registry
// mutations, state-store updates, and event-bus posts, grounded on
// original_source's gateway_app/gateway_zigbee_runtime trio
// (bootstrap/signals/commands), consolidated here into one package.
package zigbee

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gatewaystate"
	"github.com/zbgw/gatewayd/internal/registry"
	"github.com/zbgw/gatewayd/internal/status"
)

// knownDevice tracks a joined device's radio-level identity. NodeID and
// ShortAddr are the same 16-bit value; Zigbee calls it NodeID at the
// radio layer and ShortAddr at the registry layer.
type knownDevice struct {
	ShortAddr uint16
	IEEEAddr  [8]byte
	Endpoint  uint8
}

// Adapter is the owned handle for the Zigbee runtime. The zero value is
// not usable; construct with NewAdapter.
type Adapter struct {
	serial *SerialPort
	ash    *ASHLayer
	ezsp   *EZSPLayer

	registry *registry.Registry
	state    *gatewaystate.Store
	bus      *eventbus.Bus

	mu      sync.Mutex
	devices map[uint16]*knownDevice

	permitMu sync.Mutex

	lqi lqiThrottle
}

// NewAdapter opens the radio transport at portPath, negotiates the EZSP
// stack, and wires the runtime's signal handling, then returns the owned
// handle. Network formation (for a factory-new stack) or the join window
// (for a resumed stack) is initiated before this call returns.
func NewAdapter(portPath string, reg *registry.Registry, state *gatewaystate.Store, bus *eventbus.Bus) (*Adapter, error) {
	log.Info().Str("port", portPath).Msg("initializing zigbee radio")

	s, err := OpenSerial(portPath)
	if err != nil {
		return nil, fmt.Errorf("open zigbee serial port: %w", err)
	}

	ash := NewASHLayer(s)
	ezsp := NewEZSPLayer(ash)

	a := &Adapter{
		serial:   s,
		ash:      ash,
		ezsp:     ezsp,
		registry: reg,
		state:    state,
		bus:      bus,
		devices:  make(map[uint16]*knownDevice),
	}

	ezsp.SetCallbackHandler(a.handleCallback)

	if err := ash.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ash connect: %w", err)
	}
	ezsp.Start()

	if err := a.bootstrap(); err != nil {
		a.Close()
		return nil, fmt.Errorf("zigbee bootstrap: %w", err)
	}

	a.bus.Subscribe(eventbus.DeviceDeleteRequest, a.onDeviceDeleteRequest)

	return a, nil
}

// bootstrap negotiates the EZSP version, configures the stack, and
// drives the DEVICE_FIRST_START / DEVICE_REBOOT signal once at startup.
func (a *Adapter) bootstrap() error {
	proto, _, stackVer, err := a.ezsp.NegotiateVersion()
	if err != nil {
		return fmt.Errorf("negotiate ezsp version: %w", err)
	}
	log.Info().Uint8("protocol", proto).Uint16("stack", stackVer).Msg("ezsp version negotiated")

	if err := a.ezsp.ConfigureStack(); err != nil {
		return fmt.Errorf("configure stack: %w", err)
	}

	netStatus, err := a.ezsp.NetworkInit()
	if err != nil {
		return fmt.Errorf("network init: %w", err)
	}

	a.onNetworkInitResult(netStatus)
	return nil
}

// Close shuts down the radio transport.
func (a *Adapter) Close() {
	a.ezsp.Close()
	a.ash.Close()
	if err := a.serial.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close zigbee serial port")
	}
	log.Info().Msg("zigbee adapter closed")
}

// IsConnected reports whether the ASH transport is currently up.
func (a *Adapter) IsConnected() bool {
	return a.ash.IsConnected()
}

// handleCallback dispatches an asynchronous EZSP callback to the
// runtime's signal handling.
func (a *Adapter) handleCallback(frameID uint16, data []byte) {
	switch frameID {
	case ezspTrustCenterJoinHandler:
		a.handleTrustCenterJoin(data)
	case ezspIncomingMessageHandler:
		a.handleIncomingMessage(data)
	case ezspStackStatusHandler:
		a.handleStackStatus(data)
	default:
		log.Debug().Uint16("frame_id", frameID).Msg("unhandled ezsp callback")
	}
}

func randomChannel() uint8 {
	// Zigbee 2.4GHz channels 11-26; pick one at random for a fresh network.
	return uint8(11 + rand.Intn(16))
}

func randomPanID() uint16 {
	return uint16(rand.Intn(0xFFFE) + 1)
}

func randomExtPanID() [8]byte {
	var id [8]byte
	for i := range id {
		id[i] = byte(rand.Intn(256))
	}
	return id
}

// PermitJoin opens or closes the join window for the given duration in
// seconds (0 closes it immediately).
func (a *Adapter) PermitJoin(ctx context.Context, seconds int) error {
	a.permitMu.Lock()
	defer a.permitMu.Unlock()

	var dur uint8
	if seconds > 0 {
		if seconds > 254 {
			dur = 254
		} else {
			dur = uint8(seconds)
		}
	}
	if err := a.ezsp.PermitJoining(dur); err != nil {
		return status.Wrap(status.Fail, fmt.Errorf("permit join: %w", err))
	}
	return nil
}

