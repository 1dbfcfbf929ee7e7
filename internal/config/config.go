// Package config defines broker configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load layers file and env.
// - External errors must be wrapped via this package's sentinel kinds.
package config

// SpecialistConfig seeds one specialist into the registry at startup.
type SpecialistConfig struct {
	ID                string `koanf:"id"`
	Name              string `koanf:"name"`
	Category          string `koanf:"category"`
	Endpoint          string `koanf:"endpoint"`
	Price             int    `koanf:"price"`
	InitialReputation int    `koanf:"initial_reputation"`
	Active            bool   `koanf:"active"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// PaymentMode selects free or paid specialist calls.
	PaymentMode string `koanf:"payment_mode"`

	// PerCallTimeoutMS bounds each specialist call.
	PerCallTimeoutMS int `koanf:"per_call_timeout_ms"`

	// PlatformFeePercent is added on top of specialist cost in reported
	// gross totals. It never affects bid selection.
	PlatformFeePercent float64 `koanf:"platform_fee_percent"`

	// MaxBudget caps the budget accepted on a single request.
	MaxBudget int `koanf:"max_budget"`

	// Specialists seeds the registry catalog.
	Specialists []SpecialistConfig `koanf:"specialists"`
}

// New creates a Config with defaults. The default catalog points at the
// local specialist simulator (cmd/specialist-sim) so a bare broker run has
// something to dispatch to.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9090",
		PaymentMode:        "free",
		PerCallTimeoutMS:   45_000,
		PlatformFeePercent: 2.5,
		MaxBudget:          1_000_000,
		Specialists: []SpecialistConfig{
			{
				ID:                "contract-analyzer",
				Name:              "Contract Analyzer",
				Category:          "contract",
				Endpoint:          "http://localhost:9101/analyze",
				Price:             1500,
				InitialReputation: 85,
				Active:            true,
			},
			{
				ID:                "sentiment-analyzer",
				Name:              "Sentiment Analyzer",
				Category:          "sentiment",
				Endpoint:          "http://localhost:9102/analyze",
				Price:             1000,
				InitialReputation: 80,
				Active:            true,
			},
			{
				ID:                "market-analyzer",
				Name:              "Market Analyzer",
				Category:          "market",
				Endpoint:          "http://localhost:9103/analyze",
				Price:             2000,
				InitialReputation: 90,
				Active:            true,
			},
		},
	}
}
