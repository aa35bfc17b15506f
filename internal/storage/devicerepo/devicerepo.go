// Package devicerepo persists the device registry's backing array:
// a device count and a fixed-capacity record blob, grounded on
// original_source's device_repository.h port contract and the legacy
// device_manager.c persistence calls.
package devicerepo

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/gwtypes"
	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/storage"
)

const (
	keyCount = "dev_count"
	keyList  = "dev_list"

	// recordSize is 2 (short addr) + 8 (IEEE) + DeviceNameMaxLen+1 (name,
	// NUL-padded to a fixed width so records have a constant stride).
	recordSize = 2 + 8 + config.DeviceNameMaxLen + 1
)

// Repo persists the device registry's array representation.
type Repo struct {
	kv *storage.KV
}

// New wraps a KV handle for device record storage.
func New(kv *storage.KV) *Repo {
	return &Repo{kv: kv}
}

// Load reads the persisted device list. An absent dev_count is treated
// as an empty registry (first boot), not an error.
func (r *Repo) Load(ctx context.Context) ([]gwtypes.DeviceRecord, error) {
	count, found, err := r.kv.GetI32(storage.NamespaceStorage, keyCount)
	if err != nil {
		return nil, status.Wrap(status.Fail, err)
	}
	if !found || count == 0 {
		return nil, nil
	}
	if count < 0 || int(count) > config.MaxDevices {
		return nil, status.New(status.Fail, fmt.Sprintf("stored device count %d out of bounds [0,%d]", count, config.MaxDevices))
	}

	blob, found, err := r.kv.GetBlob(storage.NamespaceStorage, keyList)
	if err != nil {
		return nil, status.Wrap(status.Fail, err)
	}
	if !found {
		return nil, status.New(status.Fail, "dev_count present without dev_list")
	}

	want := int(count) * recordSize
	if len(blob) < want {
		return nil, status.New(status.Fail, "dev_list blob shorter than dev_count implies")
	}

	records := make([]gwtypes.DeviceRecord, 0, count)
	for i := 0; i < int(count); i++ {
		off := i * recordSize
		rec := decodeRecord(blob[off : off+recordSize])
		records = append(records, rec)
	}
	return records, nil
}

// Save writes the full device list as one atomic unit (count + blob
// committed together), matching the requirement that persistence writes are
// whole-array, not incremental" note.
func (r *Repo) Save(ctx context.Context, records []gwtypes.DeviceRecord) error {
	if len(records) > config.MaxDevices {
		return status.New(status.InvalidArg, fmt.Sprintf("device count %d exceeds capacity %d", len(records), config.MaxDevices))
	}

	blob := make([]byte, len(records)*recordSize)
	for i, rec := range records {
		encodeRecord(blob[i*recordSize:(i+1)*recordSize], rec)
	}

	err := r.kv.Tx(ctx, func(tx *storage.Tx) error {
		if err := tx.SetI32(storage.NamespaceStorage, keyCount, int32(len(records))); err != nil {
			return err
		}
		return tx.SetBlob(storage.NamespaceStorage, keyList, blob)
	})
	if err != nil {
		return status.Wrap(status.Fail, fmt.Errorf("save device list: %w", err))
	}
	return nil
}

func encodeRecord(dst []byte, rec gwtypes.DeviceRecord) {
	binary.BigEndian.PutUint16(dst[0:2], rec.ShortAddr)
	copy(dst[2:10], rec.IEEEAddr[:])
	nameBytes := []byte(rec.Name)
	if len(nameBytes) > config.DeviceNameMaxLen {
		nameBytes = nameBytes[:config.DeviceNameMaxLen]
	}
	copy(dst[10:], nameBytes)
	for i := 10 + len(nameBytes); i < len(dst); i++ {
		dst[i] = 0
	}
}

func decodeRecord(src []byte) gwtypes.DeviceRecord {
	var rec gwtypes.DeviceRecord
	rec.ShortAddr = binary.BigEndian.Uint16(src[0:2])
	copy(rec.IEEEAddr[:], src[2:10])
	nameEnd := 10
	for nameEnd < len(src) && src[nameEnd] != 0 {
		nameEnd++
	}
	rec.Name = string(src[10:nameEnd])
	return rec
}
