package goalie

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultEpsilon    = 0.1
	DefaultMaxHistory = 50

	probSumTolerance = 1e-9
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("goalie: invalid config")

// ConfigError reports the first invalid field found by New.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("goalie: invalid config: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Config is fixed at construction. InitialRight is informational: only
// InitialLeft drives behaviour, but the pair must still sum to 1.
type Config struct {
	InitialLeft  float64
	InitialRight float64
	Epsilon      float64
	Payoff       PayoffMatrix
	MaxHistory   int
}

func DefaultConfig() Config {
	return Config{
		InitialLeft:  0.5,
		InitialRight: 0.5,
		Epsilon:      DefaultEpsilon,
		Payoff:       DefaultPayoff(),
		MaxHistory:   DefaultMaxHistory,
	}
}

// Validate returns a *ConfigError for the first bad field, or nil.
func (c Config) Validate() error {
	if !isProb(c.Epsilon) {
		return &ConfigError{Field: "epsilon", Reason: fmt.Sprintf("must be within [0,1], got %v", c.Epsilon)}
	}
	if c.MaxHistory <= 0 {
		return &ConfigError{Field: "max_history", Reason: fmt.Sprintf("must be positive, got %d", c.MaxHistory)}
	}
	if !isProb(c.InitialLeft) {
		return &ConfigError{Field: "initial_left", Reason: fmt.Sprintf("must be within [0,1], got %v", c.InitialLeft)}
	}
	if !isProb(c.InitialRight) {
		return &ConfigError{Field: "initial_right", Reason: fmt.Sprintf("must be within [0,1], got %v", c.InitialRight)}
	}
	if math.Abs(c.InitialLeft+c.InitialRight-1) > probSumTolerance {
		return &ConfigError{Field: "initial_right", Reason: fmt.Sprintf("must equal 1 - initial_left, got %v + %v", c.InitialLeft, c.InitialRight)}
	}
	for _, dive := range []Direction{Left, Right} {
		for _, kick := range []Direction{Left, Right} {
			field := fmt.Sprintf("payoff[%s][%s]", dive, kick)
			if !c.Payoff.has(dive, kick) {
				return &ConfigError{Field: field, Reason: "is missing"}
			}
			v := c.Payoff.At(dive, kick)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ConfigError{Field: field, Reason: fmt.Sprintf("must be finite, got %v", v)}
			}
		}
	}
	return nil
}

func isProb(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
