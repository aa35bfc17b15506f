package gatewaystate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

type fakeClock struct {
	ms uint64
}

func (c *fakeClock) NowMs() uint64 { return c.ms }

func TestStore_NetworkSetGet(t *testing.T) {
	s := New(&fakeClock{ms: 100})
	s.SetNetwork(gwtypes.NetworkState{PANID: 0x1234, Channel: 15, ShortAddr: 0})
	got := s.Network()
	assert.Equal(t, uint16(0x1234), got.PANID)
	assert.Equal(t, uint8(15), got.Channel)
}

func TestStore_WifiSetGet(t *testing.T) {
	s := New(&fakeClock{ms: 100})
	s.SetWifi(gwtypes.WifiState{ActiveSSID: "home", STAConnected: true})
	got := s.Wifi()
	assert.Equal(t, "home", got.ActiveSSID)
	assert.True(t, got.STAConnected)
}

func TestStore_NowMs(t *testing.T) {
	s := New(&fakeClock{ms: 4242})
	assert.Equal(t, uint64(4242), s.NowMs())
}

func TestStore_UpdateLQI_InsertAndReplace(t *testing.T) {
	s := New(&fakeClock{ms: 1})

	require.NoError(t, s.UpdateLQI(1, 200, -60, gwtypes.LQISourceNeighborTable, 0))
	require.NoError(t, s.UpdateLQI(2, 150, -70, gwtypes.LQISourceNeighborTable, 0))

	snap := s.LQISnapshot()
	require.Len(t, snap, 2)

	require.NoError(t, s.UpdateLQI(1, 50, -90, gwtypes.LQISourceNeighborTable, 0))
	snap = s.LQISnapshot()
	require.Len(t, snap, 2)
	for _, e := range snap {
		if e.ShortAddr == 1 {
			assert.Equal(t, int32(50), e.LQI)
		}
	}
}

func TestStore_UpdateLQI_FullCacheRejectsNewRow(t *testing.T) {
	s := New(&fakeClock{ms: 1})
	s.lqiCap = 2

	require.NoError(t, s.UpdateLQI(1, 200, -60, gwtypes.LQISourceNeighborTable, 0))
	require.NoError(t, s.UpdateLQI(2, 200, -60, gwtypes.LQISourceNeighborTable, 0))

	err := s.UpdateLQI(3, 200, -60, gwtypes.LQISourceNeighborTable, 0)
	require.Error(t, err)
	assert.Equal(t, status.NoMem, status.KindOf(err))
}

func TestStore_SyncDeviceList_DropsStaleRows(t *testing.T) {
	s := New(&fakeClock{ms: 1})
	require.NoError(t, s.UpdateLQI(1, 200, -60, gwtypes.LQISourceNeighborTable, 0))
	require.NoError(t, s.UpdateLQI(2, 200, -60, gwtypes.LQISourceNeighborTable, 0))

	s.SyncDeviceList([]gwtypes.DeviceRecord{{ShortAddr: 2}})

	snap := s.LQISnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, uint16(2), snap[0].ShortAddr)
}
