// Package wsbroadcast pushes three event streams to connected WebSocket
// clients: devices_delta, health_state, and lqi_update. Grounded on
// EdgxCloud-EdgeFlow's pkg/nodes/network/websocket_server.go (a
// path-keyed connection registry guarded by one mutex, broadcast by
// iterating a snapshot copy) and original_source's
// gateway_ws_broadcaster (per-stream debounce/dedup/throttle timing,
// single-flight send lock with retry-on-busy, a shared monotonic
// sequence counter).
package wsbroadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
)

// Stream identifies one of the three push channels.
type Stream string

const (
	StreamDevicesDelta Stream = "devices_delta"
	StreamHealthState  Stream = "health_state"
	StreamLQIUpdate    Stream = "lqi_update"
)

// Metrics are the broadcaster's lifetime counters, surfaced through the
// health snapshot.
type Metrics struct {
	ConnectionsTotal        uint64
	ReconnectCount          uint64
	DroppedFramesTotal      uint64
	BroadcastLockSkipsTotal uint64
}

// Snapshotter produces the current payload for a stream on demand; the
// broadcaster calls it after debounce/throttle settles rather than
// caching the triggering event's payload, so a frame always reflects
// the latest state even if several events coalesced into it.
type Snapshotter func() (any, bool)

type client struct {
	conn  *websocket.Conn
	token string     // correlates this connection's log lines across connect/disconnect
	mu    sync.Mutex // guards conn.WriteMessage; gorilla forbids concurrent writers
}

// Broadcaster is the owned handle for the push-notification layer. The
// zero value is not usable; construct with New.
type Broadcaster struct {
	clientsMu sync.RWMutex
	clients   map[*client]struct{}

	seq uint64

	sendLock int32 // 0=free, 1=held; single-flight across all streams

	metrics struct {
		connections atomic.Uint64
		reconnects  atomic.Uint64
		dropped     atomic.Uint64
		lockSkips   atomic.Uint64
	}

	lastSent   map[Stream]time.Time
	lastFrame  map[Stream]string
	lastSentMu sync.Mutex

	snapshots map[Stream]Snapshotter

	debounce map[Stream]*pendingTimer
	pendMu   sync.Mutex
}

type pendingTimer struct {
	timer *time.Timer
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		clients:   make(map[*client]struct{}),
		lastSent:  make(map[Stream]time.Time),
		lastFrame: make(map[Stream]string),
		snapshots: make(map[Stream]Snapshotter),
		debounce:  make(map[Stream]*pendingTimer),
	}
}

// RegisterSnapshot wires the function that renders a stream's current
// payload at send time.
func (b *Broadcaster) RegisterSnapshot(s Stream, fn Snapshotter) {
	b.snapshots[s] = fn
}

// AttachEvents subscribes the broadcaster to the event bus topics that
// should trigger a push, per stream: device churn debounces into
// devices_delta, LQI cache changes throttle into lqi_update.
func (b *Broadcaster) AttachEvents(bus *eventbus.Bus) {
	bus.Subscribe(eventbus.DeviceListChanged, func(eventbus.Event) {
		b.scheduleDebounced(StreamDevicesDelta, config.WSDevicesDebounce)
	})
	bus.Subscribe(eventbus.LQIStateChanged, func(eventbus.Event) {
		b.sendThrottled(StreamLQIUpdate, config.WSHealthLQIThrottle)
	})
}

// AddClient registers a newly upgraded connection and returns the
// handle to read loop against.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, token: uuid.NewString()}
	b.clientsMu.Lock()
	if len(b.clients) >= config.MaxWSClients {
		b.clientsMu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"))
		conn.Close()
		return nil
	}
	b.clients[c] = struct{}{}
	b.clientsMu.Unlock()
	b.metrics.connections.Add(1)
	log.Debug().Str("client_token", c.token).Msg("websocket client connected")
	return c
}

// RemoveClient unregisters and closes a client connection.
func (b *Broadcaster) RemoveClient(c *client) {
	b.clientsMu.Lock()
	delete(b.clients, c)
	b.clientsMu.Unlock()
	c.conn.Close()
	log.Debug().Str("client_token", c.token).Msg("websocket client disconnected")
}

// NoteReconnect records that a client resumed a session (used by the
// read loop when a client re-subscribes within its grace window).
func (b *Broadcaster) NoteReconnect() {
	b.metrics.reconnects.Add(1)
}

// ClientCount returns the number of currently connected clients.
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Metrics returns a snapshot of the lifetime counters.
func (b *Broadcaster) Metrics() Metrics {
	return Metrics{
		ConnectionsTotal:        b.metrics.connections.Load(),
		ReconnectCount:          b.metrics.reconnects.Load(),
		DroppedFramesTotal:      b.metrics.dropped.Load(),
		BroadcastLockSkipsTotal: b.metrics.lockSkips.Load(),
	}
}

// scheduleDebounced coalesces bursts of triggers for s into one send,
// window after the first trigger in a quiet period.
func (b *Broadcaster) scheduleDebounced(s Stream, window time.Duration) {
	b.pendMu.Lock()
	defer b.pendMu.Unlock()
	if pt, ok := b.debounce[s]; ok {
		pt.timer.Reset(window)
		return
	}
	pt := &pendingTimer{}
	pt.timer = time.AfterFunc(window, func() {
		b.pendMu.Lock()
		delete(b.debounce, s)
		b.pendMu.Unlock()
		b.Send(s)
	})
	b.debounce[s] = pt
}

// sendThrottled fires immediately unless s was sent within window, in
// which case it schedules exactly one trailing send at the window
// boundary.
func (b *Broadcaster) sendThrottled(s Stream, window time.Duration) {
	b.lastSentMu.Lock()
	last, ok := b.lastSent[s]
	b.lastSentMu.Unlock()
	if !ok || time.Since(last) >= window {
		b.Send(s)
		return
	}
	b.scheduleDebounced(s, window-time.Since(last))
}

// Send renders s's current payload and pushes it to every connected
// client, unless it is byte-identical to the last frame sent on s
// within the dup-suppression window. A single-flight lock serializes
// sends across all streams; a caller that finds it held retries once
// after config.WSBroadcastLockRetry instead of blocking indefinitely.
func (b *Broadcaster) Send(s Stream) {
	fn, ok := b.snapshots[s]
	if !ok {
		return
	}
	payload, ok := fn()
	if !ok {
		return
	}

	if !atomic.CompareAndSwapInt32(&b.sendLock, 0, 1) {
		b.metrics.lockSkips.Add(1)
		time.AfterFunc(config.WSBroadcastLockRetry, func() { b.Send(s) })
		return
	}
	defer atomic.StoreInt32(&b.sendLock, 0)

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Warn().Err(err).Str("stream", string(s)).Msg("failed to encode broadcast frame")
		return
	}

	b.lastSentMu.Lock()
	if prev, ok := b.lastFrame[s]; ok && prev == string(payloadBytes) && time.Since(b.lastSent[s]) < config.WSDupSuppressWindow {
		b.lastSentMu.Unlock()
		return
	}
	b.lastFrame[s] = string(payloadBytes)
	b.lastSent[s] = time.Now()
	b.lastSentMu.Unlock()

	frame := b.encode(s, payload)
	if len(frame) > config.WSFrameBufSize {
		log.Warn().Str("stream", string(s)).Int("size", len(frame)).Msg("broadcast frame exceeds buffer budget, dropping")
		b.metrics.dropped.Add(1)
		return
	}

	b.broadcast(frame)
}

// encode wraps payload in the stream envelope, stamping it with the
// broadcaster's shared monotonic sequence counter and the current wall
// clock. Called only once a frame has cleared dup-suppression, so every
// sent frame gets a seq.
func (b *Broadcaster) encode(s Stream, payload any) []byte {
	seq := atomic.AddUint64(&b.seq, 1)
	envelope := map[string]any{
		"version": 1,
		"seq":     seq,
		"ts":      uint64(time.Now().UnixMilli()),
		"type":    s,
		"data":    payload,
	}
	frame, _ := json.Marshal(envelope)
	return frame
}

func (b *Broadcaster) broadcast(frame []byte) {
	b.clientsMu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		targets = append(targets, c)
	}
	b.clientsMu.RUnlock()

	for _, c := range targets {
		c.mu.Lock()
		err := c.conn.WriteMessage(websocket.TextMessage, frame)
		c.mu.Unlock()
		if err != nil {
			log.Warn().Str("client_token", c.token).Err(err).Msg("dropping unresponsive websocket client")
			b.metrics.dropped.Add(1)
			b.RemoveClient(c)
		}
	}
}
