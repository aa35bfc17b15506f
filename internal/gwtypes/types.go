// Package gwtypes holds the gateway's core data model: device records,
// network/Wi-Fi/LQI snapshots, job slots and metrics. These types are
// shared across persistence, registry, state store, and job queue so none
// of those packages need to import each other for plain data.
package gwtypes

import "fmt"

// DeviceRecord is a joined Zigbee end-device. Identity is ShortAddr;
// IEEEAddr is the stable hardware identity used for leave commands.
type DeviceRecord struct {
	ShortAddr uint16
	IEEEAddr  [8]byte
	Name      string
}

// DefaultName derives the implementation-defined default device name from
// its short address. The literal is not a compatibility point, only its
// bound (<=31 bytes).
func DefaultName(short uint16) string {
	return fmt.Sprintf("Device 0x%04x", short)
}

// NetworkState mirrors the most recently observed Zigbee PAN membership.
type NetworkState struct {
	ZigbeeStarted bool
	FactoryNew    bool
	PANID         uint16
	Channel       uint8
	ShortAddr     uint16
}

// WifiState mirrors the Wi-Fi manager's most recent transition.
type WifiState struct {
	STAConnected     bool
	FallbackAPActive bool
	LoadedFromNVS    bool
	ActiveSSID       string
}

// LQISource identifies how an LQI cache entry was populated.
type LQISource int

const (
	LQISourceUnknown LQISource = iota
	LQISourceNeighborTable
	LQISourceMgmtLqi
)

func (s LQISource) String() string {
	switch s {
	case LQISourceNeighborTable:
		return "neighbor_table"
	case LQISourceMgmtLqi:
		return "mgmt_lqi"
	default:
		return "unknown"
	}
}

// LQIEntry is one row of the gateway state store's link-quality cache.
type LQIEntry struct {
	ShortAddr uint16
	LQI       int32
	RSSI      int32
	Source    LQISource
	UpdatedMs uint64
}

// JobType enumerates the asynchronous operations the job queue executes.
type JobType int

const (
	JobWifiScan JobType = iota
	JobFactoryReset
	JobReboot
	JobUpdate
	JobLqiRefresh
)

func (t JobType) String() string {
	switch t {
	case JobWifiScan:
		return "scan"
	case JobFactoryReset:
		return "factory_reset"
	case JobReboot:
		return "reboot"
	case JobUpdate:
		return "update"
	case JobLqiRefresh:
		return "lqi_refresh"
	default:
		return "unknown"
	}
}

// ParseJobType maps the HTTP request's job type string to a JobType.
func ParseJobType(s string) (JobType, bool) {
	switch s {
	case "scan":
		return JobWifiScan, true
	case "factory_reset":
		return JobFactoryReset, true
	case "reboot":
		return JobReboot, true
	case "update":
		return JobUpdate, true
	case "lqi_refresh":
		return JobLqiRefresh, true
	default:
		return 0, false
	}
}

// JobState is a job slot's lifecycle state.
type JobState int

const (
	JobQueued JobState = iota
	JobRunning
	JobSucceeded
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// JobSlot is one row of the job queue's fixed-size slot table.
type JobSlot struct {
	Used          bool
	ID            uint32
	Type          JobType
	State         JobState
	ErrCode       string
	CreatedMs     uint64
	UpdatedMs     uint64
	RebootDelayMs uint32
	HasResult     bool
	ResultJSON    string
}

// JobMetrics are the job queue's monotonic counters plus derived values.
type JobMetrics struct {
	SubmittedTotal    uint64
	DedupReusedTotal  uint64
	CompletedTotal    uint64
	FailedTotal       uint64
	QueueDepthPeak    int
	QueueDepthCurrent int
	LatencyP95Ms      uint64
}

// ErrorEntry is one row of the diagnostic error ring.
type ErrorEntry struct {
	TsMs    uint64
	Code    string
	Source  string
	Message string
}
