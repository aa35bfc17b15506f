// Package config holds the project-wide compile-time defaults shared by
// every other package. It is the single authoritative source for
// constants that the original C source defined in more than one place
// (MAX_DEVICES in particular).
package config

import "time"

const (
	// MaxDevices bounds the device registry, the LQI cache, and the
	// device-record blob persisted to storage.
	MaxDevices = 10

	// MaxJobSlots bounds the job queue's fixed slot table.
	MaxJobSlots = 12

	// JobTerminalTTL is how long a Succeeded/Failed slot survives before
	// it becomes eligible for reclaim by a later submission.
	JobTerminalTTL = 30 * time.Second

	// JobResultMaxLen bounds a job's serialized result JSON.
	JobResultMaxLen = 2048

	// JobLatencyWindow is the capacity of the rolling completion-latency
	// ring used to derive p95.
	JobLatencyWindow = 64

	// MaxWSClients bounds the WebSocket broadcaster's client slot table.
	MaxWSClients = 8

	// WSFrameBufSize is the scratch buffer size budget for one framed
	// WebSocket payload (mirrors the embedded target's static buffer).
	WSFrameBufSize = 2200

	// ErrorRingSize bounds the diagnostic error ring.
	ErrorRingSize = 10

	// WifiSTAMaxRetry is the number of STA reconnect attempts before
	// falling back to AP mode.
	WifiSTAMaxRetry = 10

	// WifiSTAConnectTimeout bounds how long STA connect waits for an IP
	// lease before giving up.
	WifiSTAConnectTimeout = 30 * time.Second

	// WifiSSIDMaxLen and WifiPasswordMinLen/MaxLen bound Wi-Fi credential
	// validation, shared by the save use-case and the boot-time loader.
	WifiSSIDMaxLen      = 32
	WifiPasswordMinLen  = 8
	WifiPasswordMaxLen  = 64
	DeviceNameMaxLen    = 31
	FallbackAPChannel   = 1
	FallbackAPMaxConn   = 4
	FallbackAPPassword  = "Zigbee-1234"
	PermitJoinSeconds   = 180
	HTTPPermitJoinSecs  = 60
	LQIRefreshThrottle  = 3 * time.Second
	SchemaVersionCurrent = 1

	// WSDevicesDebounce coalesces bursts of device-list churn into one
	// devices_delta frame.
	WSDevicesDebounce = 120 * time.Millisecond

	// WSDupSuppressWindow drops a repeat frame on the same stream whose
	// payload is identical to the last one sent within this window.
	WSDupSuppressWindow = 250 * time.Millisecond

	// WSHealthLQIThrottle bounds how often health_state and lqi_update
	// frames are allowed to go out, independent of debounce.
	WSHealthLQIThrottle = 800 * time.Millisecond

	// WSBroadcastLockRetry is the backoff before a broadcaster retries a
	// send that found the single-flight lock held.
	WSBroadcastLockRetry = 20 * time.Millisecond

	// LQIGoodMin and LQIWarnMin bucket a raw LQI reading (0-255); below
	// LQIWarnMin but above zero is "bad", zero (or sentinel) is unknown.
	LQIGoodMin = 180
	LQIWarnMin = 120
)

// JobResultCaps bounds the per-type result JSON size before the HTTP
// layer must substitute a {"truncated":true,...} envelope.
var JobResultCaps = map[string]int{
	"scan":          768,
	"factory_reset": 1536,
	"reboot":        512,
	"update":        768,
	"lqi_refresh":   1024,
}
