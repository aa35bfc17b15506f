package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gatewaystate"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/jobqueue"
	"github.com/zbgw/gatewayd/internal/registry"
	"github.com/zbgw/gatewayd/internal/status"
)

// fakeDeviceRepo is an in-memory registry.Repository for tests that don't
// need persistence, only a non-nil *registry.Registry to delegate to.
type fakeDeviceRepo struct{}

func (fakeDeviceRepo) Load(ctx context.Context) ([]gwtypes.DeviceRecord, error) {
	return nil, nil
}

func (fakeDeviceRepo) Save(ctx context.Context, records []gwtypes.DeviceRecord) error {
	return nil
}

// fakeZigbee is a stand-in for ZigbeeOps recording the last call made to
// it, so tests can assert validation happened before delegation.
type fakeZigbee struct {
	permitJoinSecs int
	onOffAddr      uint16
	onOffEp        uint8
	onOffCmd       uint8
	deletedAddr    uint16
	renamedAddr    uint16
	renamedName    string
	err            error
	connected      bool
}

func (f *fakeZigbee) PermitJoin(ctx context.Context, seconds int) error {
	f.permitJoinSecs = seconds
	return f.err
}

func (f *fakeZigbee) SendOnOff(ctx context.Context, addr uint16, ep uint8, cmd uint8) error {
	f.onOffAddr, f.onOffEp, f.onOffCmd = addr, ep, cmd
	return f.err
}

func (f *fakeZigbee) DeleteDevice(ctx context.Context, short uint16) error {
	f.deletedAddr = short
	return f.err
}

func (f *fakeZigbee) RenameDevice(ctx context.Context, short uint16, name string) error {
	f.renamedAddr, f.renamedName = short, name
	return f.err
}

func (f *fakeZigbee) RefreshLQI(ctx context.Context) ([]gwtypes.LQIEntry, error) {
	return nil, f.err
}

func (f *fakeZigbee) IsConnected() bool { return f.connected }

func newTestService(zb ZigbeeOps) *Service {
	bus := eventbus.New()
	reg := registry.New(context.Background(), fakeDeviceRepo{}, bus)
	if err := reg.Init(); err != nil {
		panic(err)
	}
	return &Service{
		Registry: reg,
		State:    gatewaystate.New(gatewaystate.NewSteadyClock()),
		Jobs:     jobqueue.New(gatewaystate.NewSteadyClock(), bus),
		Zigbee:   zb,
		Errors:   eventbus.NewErrorRing(),
	}
}

func TestService_Control_ValidatesAddr(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)

	err := svc.Control(context.Background(), 0, 1, 0)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))

	err = svc.Control(context.Background(), 70000, 1, 0)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_Control_ValidatesEndpoint(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)

	err := svc.Control(context.Background(), 1, 0, 0)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))

	err = svc.Control(context.Background(), 1, 241, 0)
	require.Error(t, err)
}

func TestService_Control_ValidatesCmd(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)

	err := svc.Control(context.Background(), 1, 1, 2)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_Control_DelegatesOnValidInput(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)

	err := svc.Control(context.Background(), 42, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), zb.onOffAddr)
	assert.Equal(t, uint8(1), zb.onOffEp)
	assert.Equal(t, uint8(1), zb.onOffCmd)
}

func TestService_Control_RecordsErrorOnFailure(t *testing.T) {
	zb := &fakeZigbee{err: status.New(status.InvalidState, "radio down")}
	svc := newTestService(zb)

	err := svc.Control(context.Background(), 1, 1, 1)
	require.Error(t, err)

	errs := svc.Errors.Snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, "control", errs[0].Source)
}

func TestService_Delete_ValidatesAddr(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	err := svc.Delete(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_Delete_Delegates(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)
	require.NoError(t, svc.Delete(context.Background(), 7))
	assert.Equal(t, uint16(7), zb.deletedAddr)
}

func TestService_Rename_ValidatesNameLength(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	err := svc.Rename(context.Background(), 1, "")
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_Rename_Delegates(t *testing.T) {
	zb := &fakeZigbee{}
	svc := newTestService(zb)
	require.NoError(t, svc.Rename(context.Background(), 9, "kitchen light"))
	assert.Equal(t, uint16(9), zb.renamedAddr)
	assert.Equal(t, "kitchen light", zb.renamedName)
}

func TestService_SubmitJob_RejectsUnknownType(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	_, _, err := svc.SubmitJob("not_a_job", 0)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_SubmitJob_RejectsExcessiveRebootDelay(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	_, _, err := svc.SubmitJob("scan", 60001)
	require.Error(t, err)
	assert.Equal(t, status.InvalidArg, status.KindOf(err))
}

func TestService_SubmitJob_Succeeds(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	id, jt, err := svc.SubmitJob("scan", 0)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, gwtypes.JobWifiScan, jt)
}

func TestService_GetJob_UnknownIDFails(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	_, err := svc.GetJob(999)
	require.Error(t, err)
}

func TestService_Status_FusesNetworkAndDevices(t *testing.T) {
	svc := newTestService(&fakeZigbee{})
	svc.State.SetNetwork(gwtypes.NetworkState{PANID: 0xABCD, Channel: 11})

	snap := svc.Status(context.Background())
	assert.Equal(t, uint16(0xABCD), snap.PANID)
	assert.Equal(t, uint8(11), snap.Channel)
	assert.Empty(t, snap.Devices)
}
