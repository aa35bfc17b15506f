// Package usecases is the only layer permitted to mutate gateway state
// from the HTTP surface. Each function validates its input, then calls
// into the corresponding service. Grounded on pkg/api/handlers/*.go's
// validate-then-delegate shape and original_source's gateway_web_api
// component.
package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gatewaystate"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/jobqueue"
	"github.com/zbgw/gatewayd/internal/registry"
	"github.com/zbgw/gatewayd/internal/schema"
	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/storage/configrepo"
	"github.com/zbgw/gatewayd/internal/system"
	"github.com/zbgw/gatewayd/internal/wifimgr"
)

// requestValidator checks the control/rename request shapes against JSON
// Schema documents before they reach the Zigbee adapter.
var requestValidator = schema.NewValidator()

// controlSchema bounds POST /control's addr/ep/cmd fields.
var controlSchema = json.RawMessage(`{
	"type": "object",
	"required": ["addr", "ep", "cmd"],
	"properties": {
		"addr": {"type": "integer", "minimum": 1, "maximum": 65535},
		"ep": {"type": "integer", "minimum": 1, "maximum": 240},
		"cmd": {"type": "integer", "enum": [0, 1]}
	}
}`)

// renameSchema bounds POST /rename's short_addr/name fields.
var renameSchema = json.RawMessage(fmt.Sprintf(`{
	"type": "object",
	"required": ["short_addr", "name"],
	"properties": {
		"short_addr": {"type": "integer", "minimum": 1, "maximum": 65535},
		"name": {"type": "string", "minLength": 1, "maxLength": %d}
	}
}`, config.DeviceNameMaxLen))

// WSMetrics mirrors the WebSocket broadcaster's counters, read by the
// health snapshot.
type WSMetrics struct {
	ConnectionsTotal        uint64
	ReconnectCount          uint64
	DroppedFramesTotal      uint64
	BroadcastLockSkipsTotal uint64
}

// WSStats is the narrow view of the broadcaster the health snapshot
// needs. internal/wsbroadcast satisfies this; injecting it as an
// interface avoids usecases depending on the broadcaster package, which
// sits above usecases in the dependency order.
type WSStats interface {
	ClientCount() int
	Metrics() WSMetrics
}

// ZigbeeOps is the subset of *zigbee.Adapter the use-cases need.
// *zigbee.NullAdapter satisfies it too, for limited-mode startup when no
// radio is attached, mirroring pkg/device's NullController.
type ZigbeeOps interface {
	PermitJoin(ctx context.Context, seconds int) error
	SendOnOff(ctx context.Context, addr uint16, ep uint8, cmd uint8) error
	DeleteDevice(ctx context.Context, short uint16) error
	RenameDevice(ctx context.Context, short uint16, name string) error
	RefreshLQI(ctx context.Context) ([]gwtypes.LQIEntry, error)
	IsConnected() bool
}

// Service bundles every collaborator the API use-cases call into.
type Service struct {
	Registry  *registry.Registry
	State     *gatewaystate.Store
	Jobs      *jobqueue.Queue
	Wifi      *wifimgr.Manager
	Zigbee    ZigbeeOps
	System    *system.Service
	Errors    *eventbus.ErrorRing
	Telemetry *system.Collector

	SchemaVersion func() int32
	WS            WSStats
}

// recordError appends a failure to the diagnostic error ring.
func (s *Service) recordError(nowMs uint64, code, source, message string) {
	s.Errors.Record(gwtypes.ErrorEntry{TsMs: nowMs, Code: code, Source: source, Message: message})
}

func (s *Service) nowMs() uint64 {
	return s.State.NowMs()
}

// StatusSnapshot is the GET /status payload.
type StatusSnapshot struct {
	PANID     uint16                 `json:"pan_id"`
	Channel   uint8                  `json:"channel"`
	ShortAddr uint16                 `json:"short_addr"`
	Devices   []DeviceSummary        `json:"devices"`
}

// DeviceSummary is one row of a device listing.
type DeviceSummary struct {
	Name      string `json:"name"`
	ShortAddr uint16 `json:"short_addr"`
}

// Status fuses the network snapshot with a device-name listing.
func (s *Service) Status(ctx context.Context) StatusSnapshot {
	net := s.State.Network()
	devices := s.Registry.GetSnapshot(config.MaxDevices)
	out := make([]DeviceSummary, len(devices))
	for i, d := range devices {
		out[i] = DeviceSummary{Name: d.Name, ShortAddr: d.ShortAddr}
	}
	return StatusSnapshot{PANID: net.PANID, Channel: net.Channel, ShortAddr: net.ShortAddr, Devices: out}
}

// PermitJoin opens the network for up to config.HTTPPermitJoinSecs.
func (s *Service) PermitJoin(ctx context.Context) error {
	if err := s.Zigbee.PermitJoin(ctx, config.HTTPPermitJoinSecs); err != nil {
		s.recordError(s.nowMs(), status.KindOf(err).String(), "permit_join", err.Error())
		return err
	}
	return nil
}

// Control validates a ZCL On/Off request against controlSchema, then
// sends the command.
func (s *Service) Control(ctx context.Context, addr int, ep int, cmd int) error {
	payload := map[string]any{"addr": float64(addr), "ep": float64(ep), "cmd": float64(cmd)}
	if err := requestValidator.Validate(controlSchema, payload); err != nil {
		return status.New(status.InvalidArg, err.Error())
	}
	if err := s.Zigbee.SendOnOff(ctx, uint16(addr), uint8(ep), uint8(cmd)); err != nil {
		s.recordError(s.nowMs(), status.KindOf(err).String(), "control", err.Error())
		return err
	}
	return nil
}

// Delete validates and removes a device.
func (s *Service) Delete(ctx context.Context, shortAddr int) error {
	if shortAddr < 1 || shortAddr > 65535 {
		return status.New(status.InvalidArg, "short_addr must be 1..65535")
	}
	return s.Zigbee.DeleteDevice(ctx, uint16(shortAddr))
}

// Rename validates a rename request against renameSchema, then renames
// the device.
func (s *Service) Rename(ctx context.Context, shortAddr int, name string) error {
	payload := map[string]any{"short_addr": float64(shortAddr), "name": name}
	if err := requestValidator.Validate(renameSchema, payload); err != nil {
		return status.New(status.InvalidArg, err.Error())
	}
	return s.Zigbee.RenameDevice(ctx, uint16(shortAddr), name)
}

// WifiScan performs a synchronous scan.
func (s *Service) WifiScan(ctx context.Context) ([]wifimgr.Network, error) {
	return s.Wifi.Scan(ctx)
}

// SaveWifi validates ssid/password, persists them, and schedules a
// 1-second reboot on success.
func (s *Service) SaveWifi(ctx context.Context, ssid, password string) error {
	if err := configrepo.Validate(ssid, password); err != nil {
		return err
	}
	if err := s.Wifi.Save(ctx, ssid, password); err != nil {
		return err
	}
	s.System.ScheduleReboot(time.Second)
	return nil
}

// Reboot schedules a reboot in 1 second (single-flight; see
// system.Service.ScheduleReboot).
func (s *Service) Reboot(ctx context.Context) {
	s.System.ScheduleReboot(time.Second)
}

// FactoryReset sweeps persistence and schedules a 1-second reboot.
func (s *Service) FactoryReset(ctx context.Context) (system.FactoryResetReport, error) {
	report, err := s.System.FactoryReset(ctx)
	s.System.ScheduleReboot(time.Second)
	return report, err
}

// SubmitJob validates a job-type string and reboot delay bound, then
// submits to the job queue.
func (s *Service) SubmitJob(jobType string, rebootDelayMs uint32) (uint32, gwtypes.JobType, error) {
	t, ok := gwtypes.ParseJobType(jobType)
	if !ok {
		return 0, 0, status.New(status.InvalidArg, "unknown job type")
	}
	if rebootDelayMs > 60000 {
		return 0, 0, status.New(status.InvalidArg, "reboot_delay_ms must be 0..60000")
	}
	id, err := s.Jobs.Submit(t, rebootDelayMs)
	return id, t, err
}

// GetJob returns a job slot by id.
func (s *Service) GetJob(id uint32) (gwtypes.JobSlot, error) {
	return s.Jobs.Get(id)
}
