package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

func TestPolicyUpdate_ReturnsNotSupported(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	_, err := svc.policyUpdate(context.Background(), gwtypes.JobSlot{})
	require.Error(t, err)
	assert.Equal(t, status.NotSupported, status.KindOf(err))
}

func TestPolicyLqiRefresh_DelegatesToZigbee(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)

	result, err := svc.policyLqiRefresh(context.Background(), gwtypes.JobSlot{})
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestPolicyLqiRefresh_RecordsErrorOnFailure(t *testing.T) {
	zb := &fakeZigbee{err: status.New(status.InvalidState, "radio down")}
	svc := newTestService(zb)

	_, err := svc.policyLqiRefresh(context.Background(), gwtypes.JobSlot{})
	require.Error(t, err)

	errs := svc.Errors.Snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, "job:lqi_refresh", errs[0].Source)
}

func TestRegisterJobPolicies_WiresEveryJobType(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	svc.RegisterJobPolicies()

	for _, jt := range []gwtypes.JobType{
		gwtypes.JobWifiScan,
		gwtypes.JobFactoryReset,
		gwtypes.JobReboot,
		gwtypes.JobUpdate,
		gwtypes.JobLqiRefresh,
	} {
		id, _, err := svc.SubmitJob(jt.String(), 0)
		require.NoError(t, err, "job type %s should be a valid submission target", jt)
		_, err = svc.GetJob(id)
		require.NoError(t, err)
	}
}
