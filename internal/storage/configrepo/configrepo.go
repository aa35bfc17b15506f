// Package configrepo persists Wi-Fi station credentials as one atomic
// unit, grounded on original_source's config_service.c
// (save_wifi_credentials / load_wifi_credentials / validate_wifi_credentials).
package configrepo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zbgw/gatewayd/internal/config"
	"github.com/zbgw/gatewayd/internal/status"
	"github.com/zbgw/gatewayd/internal/storage"
)

const (
	keySSID = "wifi_ssid"
	keyPass = "wifi_pass"
)

// Repo persists Wi-Fi credentials in the storage namespace.
type Repo struct {
	kv *storage.KV
}

// New wraps a KV handle for Wi-Fi credential storage.
func New(kv *storage.KV) *Repo {
	return &Repo{kv: kv}
}

// Credentials is a validated Wi-Fi STA credential pair.
type Credentials struct {
	SSID     string
	Password string
}

// Validate checks ssid/password length bounds against config.Wifi*.
// A zero-length password is accepted as "open network" only when ssid is
// also empty (meaning "no credentials configured"); any non-empty ssid
// requires a password within bounds, matching validate_wifi_credentials.
func Validate(ssid, password string) error {
	if len(ssid) == 0 || len(ssid) > config.WifiSSIDMaxLen {
		return status.New(status.InvalidArg, fmt.Sprintf("ssid must be 1..%d bytes", config.WifiSSIDMaxLen))
	}
	if len(password) < config.WifiPasswordMinLen || len(password) > config.WifiPasswordMaxLen {
		return status.New(status.InvalidArg, fmt.Sprintf("password must be %d..%d bytes", config.WifiPasswordMinLen, config.WifiPasswordMaxLen))
	}
	return nil
}

// Save writes ssid and password as one atomic unit. A failed write
// leaves the previously stored pair untouched, never a half-written one.
func (r *Repo) Save(ctx context.Context, creds Credentials) error {
	if err := Validate(creds.SSID, creds.Password); err != nil {
		return err
	}
	err := r.kv.Tx(ctx, func(tx *storage.Tx) error {
		if err := tx.SetStr(storage.NamespaceStorage, keySSID, creds.SSID); err != nil {
			return err
		}
		return tx.SetStr(storage.NamespaceStorage, keyPass, creds.Password)
	})
	if err != nil {
		return status.Wrap(status.Fail, fmt.Errorf("save wifi credentials: %w", err))
	}
	return nil
}

// Load reads the stored credential pair. If either key is missing, or
// the stored pair fails validation (e.g. a password length bound
// tightened since it was written), Load reports not-found rather than
// returning a partially-valid or invalid pair — mirroring
// load_wifi_credentials's "silently discard invalid stored creds" rule.
func (r *Repo) Load(ctx context.Context) (Credentials, bool, error) {
	ssid, found, err := r.kv.GetStr(storage.NamespaceStorage, keySSID)
	if err != nil {
		return Credentials{}, false, status.Wrap(status.Fail, err)
	}
	if !found {
		return Credentials{}, false, nil
	}
	pass, found, err := r.kv.GetStr(storage.NamespaceStorage, keyPass)
	if err != nil {
		return Credentials{}, false, status.Wrap(status.Fail, err)
	}
	if !found {
		return Credentials{}, false, nil
	}

	if err := Validate(ssid, pass); err != nil {
		log.Warn().Str("ssid", ssid).Msg("discarding stored wifi credentials that fail current validation")
		return Credentials{}, false, nil
	}
	return Credentials{SSID: ssid, Password: pass}, true, nil
}

// Clear removes both credential keys. Used by factory reset.
func (r *Repo) Clear(ctx context.Context) error {
	err := r.kv.Tx(ctx, func(tx *storage.Tx) error {
		if err := tx.EraseKey(storage.NamespaceStorage, keySSID); err != nil {
			return err
		}
		return tx.EraseKey(storage.NamespaceStorage, keyPass)
	})
	if err != nil {
		return status.Wrap(status.Fail, fmt.Errorf("clear wifi credentials: %w", err))
	}
	return nil
}
