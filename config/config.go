// Package config loads the drive registry: for each physical drive minor
// (0-3, geometry.Drive's low two bits) it names where that drive's medium
// actually comes from — a backing image file for simulated runs, or a
// real adapter's serial port for a bridge run. Carried over from the
// teacher nearly verbatim in idiom (//go:embed default, BurntSushi/toml
// decode, OS-specific path resolution), repointed from "physical drive
// name + built-in image list" to "minor device number + backing file/
// bridge mode".
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

//go:embed floppy.toml
var defaultConfigData []byte

// Mode selects what backs a configured drive's medium.
type Mode string

const (
	ModeImage  Mode = "image"  // simdisk.Medium backed by a host file
	ModeBridge Mode = "bridge" // bridge.Bus talking to a real adapter
)

// Drive is one entry in the registry, keyed by physical drive minor.
type Drive struct {
	Minor int    `toml:"minor"`
	Mode  Mode   `toml:"mode"`
	Image string `toml:"image"` // backing file path, mode=image
	Port  string `toml:"port"`  // serial port path, mode=bridge; empty means auto-discover
}

type fileConfig struct {
	Drive []Drive `toml:"drive"`
}

// Registry is the parsed, validated set of configured drives.
type Registry struct {
	byMinor map[int]Drive
}

// configPath resolves the registry file's location: ~/.amfloppyrc on
// Linux/macOS, <UserConfigDir>/amfloppy/.amfloppyrc on Windows.
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "amfloppy")
	default:
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".amfloppyrc"), nil
}

// Load reads the registry file, creating it from the embedded default if
// it doesn't exist yet, and validates every drive entry.
func Load() (*Registry, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("config: create directory %s: %w", dir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return nil, fmt.Errorf("config: write default registry to %s: %w", path, err)
		}
	}

	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	reg := &Registry{byMinor: make(map[int]Drive, len(fc.Drive))}
	for _, d := range fc.Drive {
		if d.Minor < 0 || d.Minor > 3 {
			return nil, fmt.Errorf("config: drive minor %d out of range 0-3", d.Minor)
		}
		if _, dup := reg.byMinor[d.Minor]; dup {
			return nil, fmt.Errorf("config: drive minor %d listed more than once", d.Minor)
		}
		switch d.Mode {
		case ModeImage:
			if d.Image == "" {
				return nil, fmt.Errorf("config: drive %d has mode=image but no image path", d.Minor)
			}
		case ModeBridge:
			// Port may be empty: bridge.DiscoverPorts finds the adapter.
		default:
			return nil, fmt.Errorf("config: drive %d has unknown mode %q", d.Minor, d.Mode)
		}
		reg.byMinor[d.Minor] = d
	}
	return reg, nil
}

// Drive returns the configured entry for physical drive minor, or an
// error if that minor isn't in the registry.
func (r *Registry) Drive(minor int) (Drive, error) {
	d, ok := r.byMinor[minor]
	if !ok {
		return Drive{}, fmt.Errorf("config: no drive configured for minor %d", minor)
	}
	return d, nil
}

// Minors reports every configured physical drive minor, ascending.
func (r *Registry) Minors() []int {
	out := make([]int, 0, len(r.byMinor))
	for m := range r.byMinor {
		out = append(out, m)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
