// Package gatewaystate is the gateway state store: one lock guarding the
// network snapshot, the Wi-Fi snapshot, and the LQI cache, grounded on
// original_source's gateway_core_state component and system_service.h's
// telemetry/link-quality bucketing.
package gatewaystate

import (
	"sync"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/registry"
	"github.com/zbgw/gatewayd/internal/status"
)

// Clock provides a monotonically increasing "now in milliseconds" value.
// The default implementation reads a steady monotonic clock; tests
// substitute a deterministic one.
type Clock interface {
	NowMs() uint64
}

// SteadyClock is the production Clock, backed by time.Now's monotonic
// reading relative to process start.
type SteadyClock struct {
	start monotonicNow
}

// NewSteadyClock creates a Clock anchored at the current instant.
func NewSteadyClock() *SteadyClock {
	return &SteadyClock{start: newMonotonicNow()}
}

func (c *SteadyClock) NowMs() uint64 {
	return c.start.elapsedMs()
}

// Store is the owned handle for gateway-wide state. The zero value is
// not usable; construct with New.
type Store struct {
	mu    sync.Mutex
	clock Clock

	network gwtypes.NetworkState
	wifi    gwtypes.WifiState
	lqi     []gwtypes.LQIEntry

	lqiCap     int
	knownShort map[uint16]struct{}

	counter uint64
}

// New creates a state store using clock for LQI timestamp defaults.
func New(clock Clock) *Store {
	return &Store{
		clock:      clock,
		lqiCap:     config.MaxDevices,
		knownShort: make(map[uint16]struct{}),
	}
}

// AttachRegistry subscribes the store to DeviceListChanged so its LQI
// cache stays synced to the registry's device list, per spec's
// "device-list sync" rule.
func (s *Store) AttachRegistry(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.DeviceListChanged, func(e eventbus.Event) {
		payload, ok := e.Payload.(registry.DeviceListChanged)
		if !ok {
			return
		}
		s.SyncDeviceList(payload.Devices)
	})
}

// NowMs returns the store's clock reading, used by callers that need a
// timestamp consistent with LQI cache entries (e.g. the error ring).
func (s *Store) NowMs() uint64 {
	return s.clock.NowMs()
}

// SetNetwork replaces the entire network snapshot.
func (s *Store) SetNetwork(n gwtypes.NetworkState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = n
}

// Network returns a copy of the current network snapshot.
func (s *Store) Network() gwtypes.NetworkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.network
}

// SetWifi replaces the entire Wi-Fi snapshot.
func (s *Store) SetWifi(w gwtypes.WifiState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wifi = w
}

// Wifi returns a copy of the current Wi-Fi snapshot.
func (s *Store) Wifi() gwtypes.WifiState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wifi
}

// UpdateLQI finds the row by short, inserting if absent and capacity
// allows, else replacing in place. If the cache is full and no matching
// row exists, it fails with NoMem. updated_ms of 0 is replaced by the
// store's clock.
func (s *Store) UpdateLQI(short uint16, lqi, rssi int32, source gwtypes.LQISource, updatedMs uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if updatedMs == 0 {
		s.counter++
		updatedMs = s.clock.NowMs() + s.counter
	}

	for i := range s.lqi {
		if s.lqi[i].ShortAddr == short {
			s.lqi[i] = gwtypes.LQIEntry{ShortAddr: short, LQI: lqi, RSSI: rssi, Source: source, UpdatedMs: updatedMs}
			return nil
		}
	}

	if len(s.lqi) >= s.lqiCap {
		return status.New(status.NoMem, "lqi cache is full")
	}

	s.lqi = append(s.lqi, gwtypes.LQIEntry{ShortAddr: short, LQI: lqi, RSSI: rssi, Source: source, UpdatedMs: updatedMs})
	return nil
}

// LQISnapshot returns a copy of the current LQI cache.
func (s *Store) LQISnapshot() []gwtypes.LQIEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gwtypes.LQIEntry, len(s.lqi))
	copy(out, s.lqi)
	return out
}

// SyncDeviceList recomputes the LQI cache against the new device list:
// rows whose short_addr still appears are retained, the rest are
// dropped; rows for newly-added devices simply don't exist yet.
func (s *Store) SyncDeviceList(devices []gwtypes.DeviceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[uint16]struct{}, len(devices))
	for _, d := range devices {
		present[d.ShortAddr] = struct{}{}
	}

	kept := s.lqi[:0]
	for _, e := range s.lqi {
		if _, ok := present[e.ShortAddr]; ok {
			kept = append(kept, e)
		}
	}
	s.lqi = kept
}
