package registry

import "github.com/quorumlabs/quorum/pkg/logger"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithLogger sets a logger for outcome bookkeeping. Without one the
// registry stays silent, which keeps it usable from bare tests.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}
