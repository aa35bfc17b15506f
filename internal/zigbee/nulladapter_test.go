package zigbee

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/status"
)

func TestNullAdapter_AlwaysReportsInvalidState(t *testing.T) {
	n := NewNullAdapter()
	ctx := context.Background()

	assert.False(t, n.IsConnected())

	err := n.PermitJoin(ctx, 60)
	require.Error(t, err)
	assert.Equal(t, status.InvalidState, status.KindOf(err))

	err = n.SendOnOff(ctx, 1, 1, 1)
	require.Error(t, err)
	assert.Equal(t, status.InvalidState, status.KindOf(err))

	err = n.DeleteDevice(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, status.InvalidState, status.KindOf(err))

	err = n.RenameDevice(ctx, 1, "x")
	require.Error(t, err)
	assert.Equal(t, status.InvalidState, status.KindOf(err))

	entries, err := n.RefreshLQI(ctx)
	require.Error(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, status.InvalidState, status.KindOf(err))
}
