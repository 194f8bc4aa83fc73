// Package numerator provides the contract for human-readable ledger numbers
// such as CO-2026-00017 (checkouts) and ST-2026-00003 (settlements).
// Implementations live in the infrastructure layer.
package numerator

import (
	"context"
	"time"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses INSERT ... ON CONFLICT ... RETURNING for every number.
	// Numbers are gapless; used for settlements, which payroll reconciles.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// May leave gaps after a restart; used for checkouts.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "CO", "ST")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns yearly-reset numbering for prefix.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

var (
	CheckoutConfig   = DefaultConfig("CO")
	SettlementConfig = DefaultConfig("ST")
)

// Generator generates sequential ledger numbers.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., CO-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the next number value (for data imports).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
