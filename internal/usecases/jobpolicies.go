package usecases

import (
	"context"
	"time"

	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/jobqueue"
	"github.com/zbgw/gatewayd/internal/status"
)

// RegisterJobPolicies wires every gwtypes.JobType the queue knows about
// to the use-case that actually performs it. Called once during
// composition, after Service is fully built.
func (s *Service) RegisterJobPolicies() {
	s.Jobs.RegisterPolicy(gwtypes.JobWifiScan, s.policyWifiScan)
	s.Jobs.RegisterPolicy(gwtypes.JobFactoryReset, s.policyFactoryReset)
	s.Jobs.RegisterPolicy(gwtypes.JobReboot, s.policyReboot)
	s.Jobs.RegisterPolicy(gwtypes.JobUpdate, s.policyUpdate)
	s.Jobs.RegisterPolicy(gwtypes.JobLqiRefresh, s.policyLqiRefresh)
}

func (s *Service) policyWifiScan(ctx context.Context, job gwtypes.JobSlot) (any, error) {
	networks, err := s.Wifi.Scan(ctx)
	if err != nil {
		s.recordError(s.nowMs(), status.KindOf(err).String(), "job:scan", err.Error())
		return nil, err
	}
	return map[string]any{"networks": networks}, nil
}

func (s *Service) policyFactoryReset(ctx context.Context, job gwtypes.JobSlot) (any, error) {
	report, err := s.System.FactoryReset(ctx)
	s.System.ScheduleReboot(time.Second)
	if err != nil {
		s.recordError(s.nowMs(), status.KindOf(err).String(), "job:factory_reset", err.Error())
	}
	return report, err
}

func (s *Service) policyReboot(ctx context.Context, job gwtypes.JobSlot) (any, error) {
	delay := time.Duration(job.RebootDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = time.Second
	}
	s.System.ScheduleReboot(delay)
	return map[string]any{"reboot_delay_ms": job.RebootDelayMs}, nil
}

// policyUpdate has no firmware-update mechanism to drive on this
// platform; the job type exists so clients submitting it get a
// well-formed NotSupported result instead of an unknown-job error.
func (s *Service) policyUpdate(ctx context.Context, job gwtypes.JobSlot) (any, error) {
	return nil, status.New(status.NotSupported, "firmware update is not implemented on this gateway")
}

func (s *Service) policyLqiRefresh(ctx context.Context, job gwtypes.JobSlot) (any, error) {
	entries, err := s.Zigbee.RefreshLQI(ctx)
	if err != nil {
		s.recordError(s.nowMs(), status.KindOf(err).String(), "job:lqi_refresh", err.Error())
		return nil, err
	}
	return map[string]any{"entries": entries}, nil
}

var _ jobqueue.Policy = (*Service)(nil).policyWifiScan
