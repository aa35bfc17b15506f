// Package system implements the gateway's system service: telemetry
// collection, single-flight reboot scheduling, and the factory-reset
// sweep, grounded on original_source's system_service.h/.c and
// config_service.c's factory_reset.
package system

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/storage"
	"github.com/zbgw/gatewayd/internal/storage/configrepo"
	"github.com/zbgw/gatewayd/internal/storage/devicerepo"
)

// LinkQuality buckets Wi-Fi RSSI per system_service.c's thresholds.
type LinkQuality string

const (
	LinkGood LinkQuality = "good"
	LinkWarn LinkQuality = "warn"
	LinkBad  LinkQuality = "bad"
)

// BucketRSSI classifies a Wi-Fi RSSI reading in dBm.
func BucketRSSI(rssiDBm int32) LinkQuality {
	switch {
	case rssiDBm >= -65:
		return LinkGood
	case rssiDBm >= -75:
		return LinkWarn
	default:
		return LinkBad
	}
}

// Telemetry is a point-in-time health snapshot, standing in for the
// embedded target's heap/stack/temperature telemetry with Go runtime
// equivalents: MemStats for heap, goroutine count for stack high-water.
type Telemetry struct {
	UptimeMs     uint64
	HeapSysBytes uint64
	HeapAlloc    uint64
	Goroutines   int
	TemperatureC *float64
	WifiRSSIDBm  *int32
}

// Collector produces Telemetry snapshots relative to process start.
type Collector struct {
	start time.Time
}

// NewCollector creates a Collector anchored at the current instant.
func NewCollector() *Collector {
	return &Collector{start: time.Now()}
}

// Collect gathers a Telemetry snapshot. rssiDBm is optional (nil when
// Wi-Fi is in AP-fallback and no STA RSSI is available).
func (c *Collector) Collect(rssiDBm *int32) Telemetry {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Telemetry{
		UptimeMs:     uint64(time.Since(c.start).Milliseconds()),
		HeapSysBytes: mem.Sys,
		HeapAlloc:    mem.HeapAlloc,
		Goroutines:   runtime.NumGoroutine(),
		WifiRSSIDBm:  rssiDBm,
	}
}

// Service owns the reboot single-flight flag, grounded on
// system_service.c's schedule_reboot: a second concurrent request
// returns success without scheduling an additional task.
type Service struct {
	mu              sync.Mutex
	rebootScheduled bool
	rebootCount     int
	rebootFn        func()

	configRepo *configrepo.Repo
	deviceRepo *devicerepo.Repo
	kv         *storage.KV
}

// NewService creates the system service. rebootFn is invoked once, after
// delay, the first time ScheduleReboot succeeds; production wires this to
// an actual process restart, tests substitute a recording stub.
func NewService(kv *storage.KV, configRepo *configrepo.Repo, deviceRepo *devicerepo.Repo, rebootFn func()) *Service {
	return &Service{kv: kv, configRepo: configRepo, deviceRepo: deviceRepo, rebootFn: rebootFn}
}

// ScheduleReboot arms a one-shot reboot after delay. The second and later
// concurrent calls are idempotent: they return success without arming an
// additional timer.
func (s *Service) ScheduleReboot(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rebootScheduled {
		return
	}
	s.rebootScheduled = true
	s.rebootCount++
	time.AfterFunc(delay, s.rebootFn)
}

// IsRebootScheduled reports whether a reboot has been armed.
func (s *Service) IsRebootScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebootScheduled
}

// RebootScheduleCount returns how many times ScheduleReboot actually
// armed a new timer (0 or 1 for the lifetime of the process).
func (s *Service) RebootScheduleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebootCount
}

// FactoryResetReport is the per-partition outcome of a factory reset,
// grounded on config_service_factory_reset_report_t.
type FactoryResetReport struct {
	Message string            `json:"message"`
	Details map[string]string `json:"details"`
}

// FactoryReset erases Wi-Fi credentials, the device list, and the two
// Zigbee auxiliary partitions. Every partition is attempted regardless of
// earlier failures; an "already erased" (not-found) result on an
// auxiliary partition is recorded as Ok, not a failure, per
// config_service.c. The aggregate result is Fail if any partition
// reported a non-Ok status.
func (s *Service) FactoryReset(ctx context.Context) (FactoryResetReport, error) {
	details := make(map[string]string, 4)
	overallOk := true

	if err := s.configRepo.Clear(ctx); err != nil {
		details["wifi"] = status.KindOf(err).String()
		overallOk = false
	} else {
		details["wifi"] = status.Ok.String()
	}

	if err := s.deviceRepo.Save(ctx, nil); err != nil {
		details["devices"] = status.KindOf(err).String()
		overallOk = false
	} else {
		details["devices"] = status.Ok.String()
	}

	details["zigbee_storage"] = eraseAuxPartition(s.kv, storage.NamespaceZbData, &overallOk)
	details["zigbee_fct"] = eraseAuxPartition(s.kv, storage.NamespaceZbFct, &overallOk)

	report := FactoryResetReport{Details: details}
	if overallOk {
		report.Message = "factory reset completed"
		return report, nil
	}
	report.Message = "factory reset completed with errors"
	log.Warn().Interface("details", details).Msg("factory reset reported partial failure")
	return report, status.New(status.Fail, report.Message)
}

// eraseAuxPartition erases ns wholesale. A partition that was already
// empty is not a failure — this package has no concept of "not found"
// beyond "nothing erased", which is a valid prior state.
func eraseAuxPartition(kv *storage.KV, ns string, overallOk *bool) string {
	if _, err := kv.ErasePartition(ns); err != nil {
		*overallOk = false
		return status.Fail.String()
	}
	return status.Ok.String()
}
