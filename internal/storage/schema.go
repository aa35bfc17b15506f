package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
)

const (
	schemaNamespace = "meta"
	schemaKey       = "schema_ver"
)

// SchemaVersion returns the namespace's current schema version, or 0 if
// it has never been initialized.
func (k *KV) SchemaVersion(ns string) (int32, error) {
	v, found, err := k.GetI32(ns, schemaKey)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !found {
		return 0, nil
	}
	return v, nil
}

// MigrateToCurrent brings namespace ns from whatever version it is
// currently stamped at up to config.SchemaVersionCurrent. A stored
// version greater than the binary's current version is refused rather
// than silently reinterpreted, mirroring storage_schema's "future schema"
// guard: a downgraded binary must not touch data it does not understand.
func (k *KV) MigrateToCurrent(ctx context.Context, ns string) error {
	current, err := k.SchemaVersion(ns)
	if err != nil {
		return err
	}
	if current > config.SchemaVersionCurrent {
		return fmt.Errorf("namespace %s has schema version %d, newer than supported %d", ns, current, config.SchemaVersionCurrent)
	}
	if current == config.SchemaVersionCurrent {
		return nil
	}

	for v := current; v < config.SchemaVersionCurrent; v++ {
		if err := k.applyMigration(ctx, ns, v); err != nil {
			return fmt.Errorf("migrate %s from v%d: %w", ns, v, err)
		}
		log.Info().Str("namespace", ns).Int32("from", v).Int32("to", v+1).Msg("storage schema migrated")
	}
	return nil
}

// applyMigration runs the single step from version v to v+1. Today there
// is exactly one schema version, so this only ever stamps the initial
// version; it exists so a v1->v2 migration has a place to live without
// reshaping the public API.
func (k *KV) applyMigration(ctx context.Context, ns string, v int32) error {
	return k.Tx(ctx, func(tx *Tx) error {
		return tx.SetI32(ns, schemaKey, v+1)
	})
}
