package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if QUORUM_CONFIG is set
//  3. env (prefix QUORUM_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("QUORUM_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: QUORUM_ADDR, QUORUM_PAYMENT_MODE, ...
	// Map env keys like QUORUM_PAYMENT_MODE -> payment_mode (flat keys,
	// underscores preserved to match koanf tags on the struct).
	envProvider := env.Provider("QUORUM_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "quorum_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.PaymentMode {
	case "free", "paid":
	default:
		return fmt.Errorf("%w: payment_mode must be free or paid, got %q", ErrInvalidConfig, c.PaymentMode)
	}
	if c.PerCallTimeoutMS <= 0 {
		return fmt.Errorf("%w: per_call_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.PlatformFeePercent < 0 {
		return fmt.Errorf("%w: platform_fee_percent must not be negative", ErrInvalidConfig)
	}
	if c.MaxBudget <= 0 {
		return fmt.Errorf("%w: max_budget must be positive", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Specialists))
	for _, s := range c.Specialists {
		if s.ID == "" {
			return fmt.Errorf("%w: specialist id must not be empty", ErrInvalidConfig)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate specialist id %q", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Price < 0 {
			return fmt.Errorf("%w: specialist %q price must not be negative", ErrInvalidConfig, s.ID)
		}
		u, err := url.Parse(s.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: specialist %q endpoint %q is not a valid URL", ErrInvalidConfig, s.ID, s.Endpoint)
		}
	}
	return nil
}
