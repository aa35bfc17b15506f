package zigbee

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/registry"
)

// onNetworkInitResult implements the DEVICE_FIRST_START / DEVICE_REBOOT
// signal from original_source's gateway_zigbee_runtime_signals.c: on
// success, publish network state; if the stack came up factory-new,
// begin formation, otherwise open the join window for
// config.PermitJoinSeconds. On failure, retry in one second. A resumed
// (already-formed, non-factory-new) network is the SKIP_STARTUP case:
// the network is already up, so only the "zigbee started" state is
// published and no further commissioning runs.
func (a *Adapter) onNetworkInitResult(netStatus uint8) {
	if netStatus != emberSuccess && netStatus != emberNetworkUp {
		log.Warn().Uint8("status", netStatus).Msg("zigbee network init did not report up/success, retrying in 1s")
		time.AfterFunc(time.Second, func() {
			retryStatus, err := a.ezsp.NetworkInit()
			if err != nil {
				log.Warn().Err(err).Msg("zigbee network init retry failed")
				return
			}
			a.onNetworkInitResult(retryStatus)
		})
		return
	}

	factoryNew := netStatus != emberNetworkUp

	a.state.SetNetwork(gwtypes.NetworkState{ZigbeeStarted: true, FactoryNew: factoryNew})

	if !factoryNew {
		log.Info().Msg("zigbee network resumed, skipping commissioning")
		return
	}

	a.startFormation()
}

// startFormation implements the FORMATION signal: form a new network
// with a random channel/PAN/extended PAN id; on success, publish
// PAN id + channel and begin steering (permit-join); on failure, retry
// in one second.
func (a *Adapter) startFormation() {
	channel := randomChannel()
	panID := randomPanID()
	extPanID := randomExtPanID()

	if err := a.ezsp.FormNetwork(channel, panID, extPanID); err != nil {
		log.Warn().Err(err).Msg("zigbee network formation failed, retrying in 1s")
		time.AfterFunc(time.Second, a.startFormation)
		return
	}

	net := a.state.Network()
	net.PANID = panID
	net.Channel = channel
	net.FactoryNew = false
	a.state.SetNetwork(net)

	log.Info().Uint16("pan_id", panID).Uint8("channel", channel).Msg("zigbee network formed, starting steering")
	if err := a.PermitJoin(context.Background(), config.PermitJoinSeconds); err != nil {
		log.Warn().Err(err).Msg("failed to open join window after formation")
	}
}

// handleTrustCenterJoin implements the DEVICE_ANNCE signal and the
// device-left case, adapted from
// pkg/zigbee/controller.go handleTrustCenterJoin.
func (a *Adapter) handleTrustCenterJoin(data []byte) {
	if len(data) < 11 {
		return
	}

	nodeID := binary.LittleEndian.Uint16(data[0:2])
	var ieee [8]byte
	copy(ieee[:], data[2:10])
	joinStatus := data[10]

	if joinStatus == 3 {
		if err := a.registry.Delete(nodeID); err != nil {
			log.Warn().Err(err).Uint16("short_addr", nodeID).Msg("failed to remove departed device from registry")
		}
		a.mu.Lock()
		delete(a.devices, nodeID)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	a.devices[nodeID] = &knownDevice{ShortAddr: nodeID, IEEEAddr: ieee, Endpoint: 1}
	a.mu.Unlock()

	if err := a.registry.Add(nodeID, ieee); err != nil {
		log.Warn().Err(err).Uint16("short_addr", nodeID).Msg("failed to add joined device to registry")
		return
	}

	a.bus.Publish(eventbus.Event{Topic: eventbus.DeviceAnnounce, Payload: registry.DeviceListChanged{}})

	if err := a.PermitJoin(context.Background(), 0); err != nil {
		log.Warn().Err(err).Msg("failed to close join window after device announce")
	}

	a.lqi.trigger(a)
}

// handleIncomingMessage implements the ZCL action callback: on
// REPORT_ATTR for the On/Off attribute, log the change and trigger a
// throttled LQI refresh.
func (a *Adapter) handleIncomingMessage(data []byte) {
	if len(data) < 19 {
		return
	}
	clusterID := binary.LittleEndian.Uint16(data[3:5])
	sender := binary.LittleEndian.Uint16(data[14:16])
	msgLen := data[18]
	if len(data) < 19+int(msgLen) {
		return
	}
	message := data[19 : 19+int(msgLen)]
	if len(message) < 3 {
		return
	}

	frameControl := message[0]
	cmdID := message[2]
	isGlobal := frameControl&0x01 == 0

	if clusterID == zclClusterOnOff && isGlobal && cmdID == zclGlobalReportAttributes {
		log.Info().Uint16("short_addr", sender).Msg("on/off attribute report received")
		a.lqi.trigger(a)
	}
}

// handleStackStatus logs stack status transitions treated as
// default (log-only) signals.
func (a *Adapter) handleStackStatus(data []byte) {
	if len(data) < 1 {
		return
	}
	switch data[0] {
	case emberNetworkUp:
		log.Info().Msg("zigbee stack status: network up")
	case emberNetworkDown:
		log.Warn().Msg("zigbee stack status: network down")
	default:
		log.Debug().Uint8("status", data[0]).Msg("zigbee stack status changed")
	}
}

// onDeviceDeleteRequest subscribes to eventbus.DeviceDeleteRequest: on
// arrival, briefly open the network (seconds=0 forces a state refresh)
// and send a ZDO mgmt-leave to the device's IEEE address.
func (a *Adapter) onDeviceDeleteRequest(e eventbus.Event) {
	req, ok := e.Payload.(registry.DeviceDeleteRequest)
	if !ok {
		return
	}
	if err := a.PermitJoin(context.Background(), 0); err != nil {
		log.Warn().Err(err).Msg("failed to refresh join window before leave")
	}
	if err := a.sendLeave(req.IEEEAddr); err != nil {
		log.Warn().Err(err).Str("ieee", formatIEEE(req.IEEEAddr)).Msg("failed to send zdo leave")
	}
}

