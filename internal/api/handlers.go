package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/usecases"
)

// Handlers holds the use-case service every route delegates to. One
// method per route, grounded on pkg/api/handlers/*.go's
// validate-then-delegate shape: parse/bind input, call the service,
// translate its error into the envelope.
type Handlers struct {
	svc *usecases.Service
}

// NewHandlers creates the handler set.
func NewHandlers(svc *usecases.Service) *Handlers {
	return &Handlers{svc: svc}
}

// Status handles GET /status.
//
//	@Summary	Network and device status
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/status [get]
func (h *Handlers) Status(c *gin.Context) {
	respondOK(c, h.svc.Status(c.Request.Context()))
}

// Health handles GET /health.
//
//	@Summary	Fused health snapshot
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/health [get]
func (h *Handlers) Health(c *gin.Context) {
	respondOK(c, h.svc.Health(c.Request.Context()))
}

// LQI handles GET /lqi.
//
//	@Summary	Link-quality cache
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/lqi [get]
func (h *Handlers) LQI(c *gin.Context) {
	respondOK(c, h.svc.LQI(c.Request.Context()))
}

// PermitJoin handles POST /permit_join.
//
//	@Summary	Open the commissioning window
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/permit_join [post]
func (h *Handlers) PermitJoin(c *gin.Context) {
	if err := h.svc.PermitJoin(c.Request.Context()); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"message": "join window opened"})
}

// Control handles POST /control.
//
//	@Summary	Send a ZCL On/Off command
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ControlRequest	true	"target and command"
//	@Success	200		{object}	Envelope
//	@Router		/control [post]
func (h *Handlers) Control(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, status.New(status.InvalidArg, err.Error()))
		return
	}
	if err := h.svc.Control(c.Request.Context(), req.Addr, req.Ep, req.Cmd); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"message": "command sent"})
}

// DeleteDevice handles POST /delete.
//
//	@Summary	Remove a device and trigger it to leave the network
//	@Accept		json
//	@Produce	json
//	@Param		request	body		DeleteRequest	true	"short address"
//	@Success	200		{object}	Envelope
//	@Router		/delete [post]
func (h *Handlers) DeleteDevice(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, status.New(status.InvalidArg, err.Error()))
		return
	}
	if err := h.svc.Delete(c.Request.Context(), req.ShortAddr); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"message": "device removed"})
}

// RenameDevice handles POST /rename.
//
//	@Summary	Rename a device
//	@Accept		json
//	@Produce	json
//	@Param		request	body		RenameRequest	true	"short address and new name"
//	@Success	200		{object}	Envelope
//	@Router		/rename [post]
func (h *Handlers) RenameDevice(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, status.New(status.InvalidArg, err.Error()))
		return
	}
	if err := h.svc.Rename(c.Request.Context(), req.ShortAddr, req.Name); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"message": "device renamed"})
}

// WifiScan handles GET /wifi/scan.
//
//	@Summary	Scan for Wi-Fi networks
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/wifi/scan [get]
func (h *Handlers) WifiScan(c *gin.Context) {
	networks, err := h.svc.WifiScan(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"networks": networks})
}

// SaveWifi handles POST /settings/wifi.
//
//	@Summary	Save Wi-Fi credentials and reboot
//	@Accept		json
//	@Produce	json
//	@Param		request	body		SaveWifiRequest	true	"credentials"
//	@Success	200		{object}	Envelope
//	@Router		/settings/wifi [post]
func (h *Handlers) SaveWifi(c *gin.Context) {
	var req SaveWifiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, status.New(status.InvalidArg, err.Error()))
		return
	}
	if err := h.svc.SaveWifi(c.Request.Context(), req.SSID, req.Password); err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"message": "credentials saved, rebooting"})
}

// Reboot handles POST /reboot.
//
//	@Summary	Schedule a reboot in 1 second
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/reboot [post]
func (h *Handlers) Reboot(c *gin.Context) {
	h.svc.Reboot(c.Request.Context())
	respondOK(c, gin.H{"message": "reboot scheduled"})
}

// FactoryReset handles POST /factory_reset.
//
//	@Summary	Sweep persistence and reboot
//	@Produce	json
//	@Success	200	{object}	Envelope
//	@Router		/factory_reset [post]
func (h *Handlers) FactoryReset(c *gin.Context) {
	report, err := h.svc.FactoryReset(c.Request.Context())
	if err != nil {
		c.JSON(status.HTTPCode(status.KindOf(err)), Envelope{
			Status: "error",
			Data:   report,
			Error:  &ErrorBody{Code: status.KindOf(err).String(), Message: err.Error()},
		})
		return
	}
	respondOK(c, report)
}

// SubmitJob handles POST /jobs.
//
//	@Summary	Submit an asynchronous job
//	@Accept		json
//	@Produce	json
//	@Param		request	body		SubmitJobRequest	true	"job type and parameters"
//	@Success	200		{object}	Envelope
//	@Router		/jobs [post]
func (h *Handlers) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErr(c, status.New(status.InvalidArg, err.Error()))
		return
	}
	id, jobType, err := h.svc.SubmitJob(req.Type, req.RebootDelayMs)
	if err != nil {
		respondErr(c, err)
		return
	}
	state := "queued"
	if slot, err := h.svc.GetJob(id); err == nil {
		state = slot.State.String()
	}
	respondOK(c, SubmitJobResponse{JobID: id, Type: jobType.String(), State: state})
}

// GetJob handles GET /jobs/:id.
//
//	@Summary	Fetch a job's current state
//	@Produce	json
//	@Param		id	path		int	true	"job id"
//	@Success	200	{object}	Envelope
//	@Router		/jobs/{id} [get]
func (h *Handlers) GetJob(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondErr(c, status.New(status.InvalidArg, "id must be an integer"))
		return
	}
	job, err := h.svc.GetJob(uint32(id))
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, newJobResponse(job))
}
