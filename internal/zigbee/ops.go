package zigbee

import (
	"context"
	"fmt"

	"github.com/zbgw/gatewayd/internal/status"
)

// ezspRemoveDevice is the EZSP frame id for the NCP's removeDevice
// command (target/parent/child EUI64), the closest EZSP primitive to a
// ZDO Mgmt_Leave_req; the adapted transport layer does
// not expose a ZDO cluster builder, so the delete-subscription handler
// issues this frame directly instead.
const ezspRemoveDevice uint16 = 0x00A8

// SendOnOff sends a ZCL On/Off cluster command to addr/ep, part of the
// runtime's small ops table (send_on_off, delete_device, rename_device)
// used by the API use-cases layer.
func (a *Adapter) SendOnOff(ctx context.Context, addr uint16, ep uint8, cmd uint8) error {
	if cmd != zclCmdOn && cmd != zclCmdOff {
		return status.New(status.InvalidArg, "cmd must be 0 (off) or 1 (on)")
	}
	payload := BuildOnOffCommand(cmd)
	if err := a.ezsp.SendUnicast(addr, zclProfileHA, zclClusterOnOff, 1, ep, payload); err != nil {
		return status.Wrap(status.Fail, fmt.Errorf("send on/off command: %w", err))
	}
	return nil
}

// DeleteDevice removes a device from the registry, which in turn
// triggers a leave via the delete-request subscription (signals.go).
func (a *Adapter) DeleteDevice(ctx context.Context, short uint16) error {
	return a.registry.Delete(short)
}

// RenameDevice validates a non-empty name and forwards to the registry.
func (a *Adapter) RenameDevice(ctx context.Context, short uint16, name string) error {
	if len(name) == 0 {
		return status.New(status.InvalidArg, "name must not be empty")
	}
	return a.registry.UpdateName(short, name)
}

// sendLeave issues an EZSP removeDevice command addressed to ieee,
// standing in for a ZDO Mgmt_Leave_req.
func (a *Adapter) sendLeave(ieee [8]byte) error {
	params := make([]byte, 0, 24)
	params = append(params, ieee[:]...) // target
	params = append(params, ieee[:]...) // last known parent (unknown; use target)
	params = append(params, ieee[:]...) // child to remove
	_, err := a.ezsp.SendCommand(ezspRemoveDevice, params)
	return err
}
