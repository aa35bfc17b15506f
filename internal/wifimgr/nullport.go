package wifimgr

import (
	"context"
	"time"
)

// NullPort is a no-op Port used when no Wi-Fi radio driver is bound,
// mirroring pkg/device's NullController fallback pattern in
// cmd/api/main.go. ConnectSTA always fails, driving the manager straight
// to AP fallback so the rest of the system still has a Wi-Fi state to
// report.
type NullPort struct {
	MACSuffix string
}

// NewNullPort creates a NullPort with a deterministic MAC suffix.
func NewNullPort() *NullPort {
	return &NullPort{MACSuffix: "0000"}
}

func (p *NullPort) ConnectSTA(ctx context.Context, ssid, password string, maxRetry int, timeout time.Duration) error {
	return errNoRadio
}

func (p *NullPort) StartAP(ctx context.Context, ssid, password string, channel, maxConn int) error {
	return nil
}

func (p *NullPort) SoftAPMACSuffix() string { return p.MACSuffix }

func (p *NullPort) Scan(ctx context.Context) ([]Network, error) {
	return nil, errNoRadio
}

var errNoRadio = &noRadioError{}

type noRadioError struct{}

func (e *noRadioError) Error() string { return "wifi: no radio driver bound" }
