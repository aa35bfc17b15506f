package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/usecases"
	"github.com/zbgw/gatewayd/internal/wsbroadcast"
)

// fakeZigbee is a minimal usecases.ZigbeeOps recording the last call
// made to it, so these tests can assert the route/body binding reached
// the service layer with the right arguments.
type fakeZigbee struct {
	deletedAddr uint16
	renamedAddr uint16
	renamedName string
}

func (f *fakeZigbee) PermitJoin(ctx context.Context, seconds int) error { return nil }
func (f *fakeZigbee) SendOnOff(ctx context.Context, addr uint16, ep uint8, cmd uint8) error {
	return nil
}
func (f *fakeZigbee) DeleteDevice(ctx context.Context, short uint16) error {
	f.deletedAddr = short
	return nil
}
func (f *fakeZigbee) RenameDevice(ctx context.Context, short uint16, name string) error {
	f.renamedAddr, f.renamedName = short, name
	return nil
}
func (f *fakeZigbee) RefreshLQI(ctx context.Context) ([]gwtypes.LQIEntry, error) { return nil, nil }
func (f *fakeZigbee) IsConnected() bool                                         { return false }

func newTestRouter(zb usecases.ZigbeeOps) *Router {
	svc := &usecases.Service{Zigbee: zb}
	return NewRouter(svc, wsbroadcast.New())
}

func TestDeleteDevice_BindsShortAddrFromBody(t *testing.T) {
	zb := &fakeZigbee{}
	r := newTestRouter(zb)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/delete", strings.NewReader(`{"short_addr":7}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint16(7), zb.deletedAddr)
}

func TestRenameDevice_BindsShortAddrAndNameFromBody(t *testing.T) {
	zb := &fakeZigbee{}
	r := newTestRouter(zb)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rename", strings.NewReader(`{"short_addr":9,"name":"kitchen light"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint16(9), zb.renamedAddr)
	assert.Equal(t, "kitchen light", zb.renamedName)
}

func TestDeleteDevice_RejectsMissingShortAddr(t *testing.T) {
	zb := &fakeZigbee{}
	r := newTestRouter(zb)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/delete", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}
