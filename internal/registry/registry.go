// Package registry owns the authoritative in-memory device list and its
// persistence, grounded on original_source's device_service.h /
// device_service_repo_port.h (the refined, port-based device service) and
// the legacy device_manager.c for field-level mutation semantics. The
// pkg/device/controller.go supplies the Go shape precedent: a
// small port interface plus one concrete implementation guarded by a
// single RWMutex.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/eventbus"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
)

// Repository is the persistence port the registry saves through. It is
// satisfied by internal/storage/devicerepo.Repo.
type Repository interface {
	Load(ctx context.Context) ([]gwtypes.DeviceRecord, error)
	Save(ctx context.Context, records []gwtypes.DeviceRecord) error
}

// DeviceDeleteRequest is the payload posted to eventbus.DeviceDeleteRequest.
type DeviceDeleteRequest struct {
	ShortAddr uint16
	IEEEAddr  [8]byte
}

// DeviceListChanged is the payload posted to eventbus.DeviceListChanged.
type DeviceListChanged struct {
	Devices []gwtypes.DeviceRecord
}

// Registry is the owned handle for the device list. The zero value is
// not usable; construct with New.
type Registry struct {
	mu    sync.Mutex
	repo  Repository
	bus   *eventbus.Bus
	ctx   context.Context
	cap   int
	init  bool
	items []gwtypes.DeviceRecord
}

// New creates a registry bound to repo and bus. Call Init before use.
func New(ctx context.Context, repo Repository, bus *eventbus.Bus) *Registry {
	return &Registry{repo: repo, bus: bus, ctx: ctx, cap: config.MaxDevices}
}

// Init is idempotent: the first call loads devices from the repository
// and emits one DeviceListChanged notification; subsequent calls are a
// no-op.
func (r *Registry) Init() error {
	r.mu.Lock()
	if r.init {
		r.mu.Unlock()
		return nil
	}
	items, err := r.repo.Load(r.ctx)
	if err != nil {
		r.mu.Unlock()
		return status.Wrap(status.Fail, fmt.Errorf("load device registry: %w", err))
	}
	r.items = items
	r.init = true
	snapshot := r.cloneLocked()
	r.mu.Unlock()

	r.bus.Publish(eventbus.Event{Topic: eventbus.DeviceListChanged, Payload: DeviceListChanged{Devices: snapshot}})
	return nil
}

// Add joins a device. If short already exists, only its IEEE address is
// updated — no rename, no persistence call, no notification. Otherwise,
// if capacity allows, a new record is appended with the default name,
// persisted, and a DeviceListChanged notification is fired after unlock.
// NO_MEM is returned when the registry is full.
func (r *Registry) Add(short uint16, ieee [8]byte) error {
	r.mu.Lock()

	for i := range r.items {
		if r.items[i].ShortAddr == short {
			r.items[i].IEEEAddr = ieee
			r.mu.Unlock()
			return nil
		}
	}

	if len(r.items) >= r.cap {
		r.mu.Unlock()
		return status.New(status.NoMem, "device registry is full")
	}

	prev := append([]gwtypes.DeviceRecord(nil), r.items...)
	r.items = append(r.items, gwtypes.DeviceRecord{
		ShortAddr: short,
		IEEEAddr:  ieee,
		Name:      gwtypes.DefaultName(short),
	})

	if err := r.repo.Save(r.ctx, r.items); err != nil {
		r.items = prev
		r.mu.Unlock()
		return status.Wrap(status.Fail, fmt.Errorf("persist new device: %w", err))
	}

	snapshot := r.cloneLocked()
	r.mu.Unlock()

	r.bus.Publish(eventbus.Event{Topic: eventbus.DeviceListChanged, Payload: DeviceListChanged{Devices: snapshot}})
	return nil
}

// UpdateName renames a device. If the new name equals the current name,
// this is a no-op: no persistence call, no notification. The name is
// truncated to config.DeviceNameMaxLen bytes before being stored.
func (r *Registry) UpdateName(short uint16, newName string) error {
	if len(newName) > config.DeviceNameMaxLen {
		newName = newName[:config.DeviceNameMaxLen]
	}

	r.mu.Lock()

	idx := -1
	for i := range r.items {
		if r.items[i].ShortAddr == short {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return status.New(status.NotFound, "device not found")
	}
	if r.items[idx].Name == newName {
		r.mu.Unlock()
		return nil
	}

	prevName := r.items[idx].Name
	r.items[idx].Name = newName

	if err := r.repo.Save(r.ctx, r.items); err != nil {
		r.items[idx].Name = prevName
		r.mu.Unlock()
		return status.Wrap(status.Fail, fmt.Errorf("persist rename: %w", err))
	}

	snapshot := r.cloneLocked()
	r.mu.Unlock()

	r.bus.Publish(eventbus.Event{Topic: eventbus.DeviceListChanged, Payload: DeviceListChanged{Devices: snapshot}})
	return nil
}

// Delete removes a device, preserving order of the rest. Absent short is
// a no-op. On success, after releasing the lock, Delete publishes a
// DeviceDeleteRequest (carrying the captured IEEE address) followed by a
// DeviceListChanged notification.
func (r *Registry) Delete(short uint16) error {
	r.mu.Lock()

	idx := -1
	for i := range r.items {
		if r.items[i].ShortAddr == short {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return nil
	}

	removed := r.items[idx]
	prev := append([]gwtypes.DeviceRecord(nil), r.items...)
	r.items = append(r.items[:idx], r.items[idx+1:]...)

	if err := r.repo.Save(r.ctx, r.items); err != nil {
		r.items = prev
		r.mu.Unlock()
		return status.Wrap(status.Fail, fmt.Errorf("persist delete: %w", err))
	}

	snapshot := r.cloneLocked()
	r.mu.Unlock()

	r.bus.Publish(eventbus.Event{Topic: eventbus.DeviceDeleteRequest, Payload: DeviceDeleteRequest{ShortAddr: removed.ShortAddr, IEEEAddr: removed.IEEEAddr}})
	r.bus.Publish(eventbus.Event{Topic: eventbus.DeviceListChanged, Payload: DeviceListChanged{Devices: snapshot}})
	return nil
}

// GetSnapshot copies up to max records under lock.
func (r *Registry) GetSnapshot(max int) []gwtypes.DeviceRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items)
	if max >= 0 && max < n {
		n = max
	}
	out := make([]gwtypes.DeviceRecord, n)
	copy(out, r.items[:n])
	return out
}

// Count returns the current device count.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry) cloneLocked() []gwtypes.DeviceRecord {
	out := make([]gwtypes.DeviceRecord, len(r.items))
	copy(out, r.items)
	return out
}
