// Package config loads the host-tunable limits that bound the VM's
// recursion depth and the REPL's input handling, from environment
// variables.
package config

import "github.com/caarlos0/env/v6"

// Limits holds the values read from the environment. The per-frame local
// slot count is not among them: it is fixed by the instruction set's 8-bit
// operand width, not a deployment knob.
type Limits struct {
	// MaxCallFrames bounds recursion depth; <= 0 falls back to the VM's
	// built-in default.
	MaxCallFrames int `env:"VELA_MAX_CALL_FRAMES" envDefault:"64"`

	// MaxReplLineBytes bounds how long a single REPL input line may be
	// before it is rejected.
	MaxReplLineBytes int `env:"VELA_MAX_REPL_LINE_BYTES" envDefault:"1024"`
}

// Load reads Limits from the process environment, applying the struct tag
// defaults for anything unset.
func Load() (Limits, error) {
	var l Limits
	if err := env.Parse(&l); err != nil {
		return Limits{}, err
	}
	return l, nil
}
