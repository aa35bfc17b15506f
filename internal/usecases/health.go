package usecases

import (
	"context"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/system"
)

// HealthSnapshot fuses every subsystem's state into the GET /health
// payload: network membership, Wi-Fi link, persistence schema version,
// WebSocket client/metric counters, process telemetry, job-queue
// metrics, and the tail of the diagnostic error ring.
type HealthSnapshot struct {
	Network       gwtypes.NetworkState
	Wifi          gwtypes.WifiState
	WifiLink      system.LinkQuality
	SchemaVersion int32
	WSClients     int
	WSMetrics     WSMetrics
	Telemetry     system.Telemetry
	Jobs          gwtypes.JobMetrics
	RadioUp       bool
	RebootArmed   bool
	RecentErrors  []gwtypes.ErrorEntry
}

// Health assembles a HealthSnapshot. It never fails: subsystems that
// cannot currently report a value leave their corresponding field at
// its zero value.
func (s *Service) Health(ctx context.Context) HealthSnapshot {
	wifi := s.State.Wifi()

	var rssi *int32
	if wifi.STAConnected {
		// No live RSSI sampling port is wired; telemetry reports the
		// connection state without a numeric reading rather than
		// fabricating one.
		rssi = nil
	}

	link := system.LinkBad
	if rssi != nil {
		link = system.BucketRSSI(*rssi)
	} else if wifi.STAConnected {
		link = system.LinkGood
	}

	snap := HealthSnapshot{
		Network:       s.State.Network(),
		Wifi:          wifi,
		WifiLink:      link,
		SchemaVersion: s.SchemaVersion(),
		Telemetry:     s.Telemetry.Collect(rssi),
		Jobs:          s.Jobs.Metrics(),
		RadioUp:       s.Zigbee != nil && s.Zigbee.IsConnected(),
		RebootArmed:   s.System.IsRebootScheduled(),
		RecentErrors:  s.Errors.Snapshot(),
	}
	if s.WS != nil {
		snap.WSClients = s.WS.ClientCount()
		snap.WSMetrics = s.WS.Metrics()
	}
	return snap
}

// LQIRow is one entry of the GET /lqi response, with quality bucketed
// per the WebSocket broadcaster's same thresholds so the REST and push
// views never disagree.
type LQIRow struct {
	ShortAddr uint16 `json:"short_addr"`
	Name      string `json:"name"`
	LQI       *int32 `json:"lqi"`
	RSSI      *int32 `json:"rssi"`
	Quality   string `json:"quality"`
	Direct    bool   `json:"direct"`
	Source    string `json:"source"`
	UpdatedMs uint64 `json:"updated_ms"`
}

// LQIFrame is the lqi_update WebSocket frame's data payload: the
// per-device rows plus a frame-level freshness stamp and source label.
type LQIFrame struct {
	Neighbors []LQIRow `json:"neighbors"`
	UpdatedMs uint64   `json:"updated_ms"`
	Source    string   `json:"source"`
}

// LQI returns the current link-quality cache as response rows. lqi<=0
// and the EZSP "unknown" RSSI sentinels (127 or <=-127) render as null
// rather than a misleading zero.
func (s *Service) LQI(ctx context.Context) []LQIRow {
	entries := s.State.LQISnapshot()
	names := make(map[uint16]string, len(entries))
	for _, d := range s.Registry.GetSnapshot(config.MaxDevices) {
		names[d.ShortAddr] = d.Name
	}

	rows := make([]LQIRow, len(entries))
	for i, e := range entries {
		rows[i] = LQIRow{
			ShortAddr: e.ShortAddr,
			Name:      names[e.ShortAddr],
			Quality:   bucketLQI(e.LQI),
			Direct:    e.Source != gwtypes.LQISourceUnknown,
			Source:    e.Source.String(),
			UpdatedMs: e.UpdatedMs,
		}
		if e.LQI > 0 {
			v := e.LQI
			rows[i].LQI = &v
		}
		if e.RSSI != 127 && e.RSSI > -127 {
			v := e.RSSI
			rows[i].RSSI = &v
		}
	}
	return rows
}

// LQISnapshot builds the lqi_update WebSocket frame's data payload.
// UpdatedMs is the most recent row timestamp; Source is that row's
// source label when every row agrees, "mixed" when they disagree, and
// "unknown" when the cache is empty.
func (s *Service) LQISnapshot(ctx context.Context) LQIFrame {
	rows := s.LQI(ctx)
	frame := LQIFrame{Neighbors: rows, Source: "unknown"}
	for i, r := range rows {
		if r.UpdatedMs > frame.UpdatedMs {
			frame.UpdatedMs = r.UpdatedMs
		}
		switch {
		case i == 0:
			frame.Source = r.Source
		case frame.Source != r.Source:
			frame.Source = "mixed"
		}
	}
	return frame
}

func bucketLQI(lqi int32) string {
	switch {
	case lqi >= config.LQIGoodMin:
		return "good"
	case lqi >= config.LQIWarnMin:
		return "warn"
	case lqi > 0:
		return "bad"
	default:
		return "unknown"
	}
}
