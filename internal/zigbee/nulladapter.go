package zigbee

import (
	"context"

	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

// NullAdapter is the zero-radio fallback used when the serial port
// cannot be opened, mirroring pkg/device/null_controller.go's
// NullController: the API stays up in limited mode instead of the
// process failing to start.
type NullAdapter struct{}

// NewNullAdapter creates a NullAdapter.
func NewNullAdapter() *NullAdapter {
	return &NullAdapter{}
}

func (n *NullAdapter) PermitJoin(ctx context.Context, seconds int) error {
	return status.New(status.InvalidState, "zigbee radio not connected")
}

func (n *NullAdapter) SendOnOff(ctx context.Context, addr uint16, ep uint8, cmd uint8) error {
	return status.New(status.InvalidState, "zigbee radio not connected")
}

func (n *NullAdapter) DeleteDevice(ctx context.Context, short uint16) error {
	return status.New(status.InvalidState, "zigbee radio not connected")
}

func (n *NullAdapter) RenameDevice(ctx context.Context, short uint16, name string) error {
	return status.New(status.InvalidState, "zigbee radio not connected")
}

func (n *NullAdapter) RefreshLQI(ctx context.Context) ([]gwtypes.LQIEntry, error) {
	return nil, status.New(status.InvalidState, "zigbee radio not connected")
}

func (n *NullAdapter) IsConnected() bool {
	return false
}
