// Package config loads the allocator's run configuration from a TOML
// file (github.com/pelletier/go-toml/v2), narrowed to the knobs an
// allocator run actually needs.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

const FileName = "vasm.toml"

// RunConfig controls one allocate() invocation.
type RunConfig struct {
	Run         RunSection         `toml:"run"`
	Diagnostics DiagnosticsSection `toml:"diagnostics"`
	Stress      StressSpill        `toml:"stress_spill"`
}

type RunSection struct {
	// Arch names the target ABI bundle; see
	// internal/abi.For.
	Arch string `toml:"arch"`

	// SpillCapacity caps the number of 8-byte slots the allocation
	// loop may hand out before punting with diagnostics.X0100.
	// Zero means unlimited.
	SpillCapacity int `toml:"spill_capacity"`

	// Profile turns on internal/profile per-pass timing.
	Profile bool `toml:"profile"`

	// Trace turns on internal/trace allocation-event recording.
	Trace bool `toml:"trace"`
}

type DiagnosticsSection struct {
	Colors bool `toml:"colors"`
}

// StressSpill is a testing knob: when Enabled, the allocator seeds a
// deterministic RNG from Seed and reserves 1 to 7 extra spill slots,
// never released, before allocation starts. This enlarges the spill
// area; it does not spill any interval that would otherwise get a
// register.
type StressSpill struct {
	Enabled bool   `toml:"enabled"`
	Seed    uint64 `toml:"seed"`
}

// Default returns a RunConfig with the allocator's out-of-the-box
// behavior: no stress spilling, profiling and tracing off, colors
// following the terminal auto-detection in internal/diagnostics.
func Default() RunConfig {
	return RunConfig{
		Run: RunSection{
			Arch:          "x86_64",
			SpillCapacity: 0,
			Profile:       false,
			Trace:         false,
		},
		Diagnostics: DiagnosticsSection{Colors: true},
	}
}

// Load reads and parses a vasm.toml file, falling back to Default()
// for any field the file omits.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
