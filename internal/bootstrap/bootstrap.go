// Package bootstrap loads an optional on-disk YAML file overriding the
// gateway's compiled-in defaults (database path, serial port, listen
// address, Wi-Fi credentials), read once at startup. Grounded on
// labgen.LoadTopology's read-then-unmarshal shape.
package bootstrap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the shape of gatewayd.yaml. Every field is optional; a zero
// value means "use the compiled-in default".
type Config struct {
	DBPath          string `yaml:"db_path"`
	SerialPort      string `yaml:"serial_port"`
	HTTPAddr        string `yaml:"http_addr"`
	DefaultSSID     string `yaml:"default_ssid"`
	DefaultPassword string `yaml:"default_password"`
}

// Load reads and parses path. ok is false, with a nil error, when path
// does not exist — the bootstrap file is optional.
func Load(path string) (cfg *Config, ok bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading bootstrap config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, false, fmt.Errorf("parsing bootstrap config: %w", err)
	}
	return &c, true, nil
}
