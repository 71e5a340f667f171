package records

import (
	"github.com/haukened/localdns/internal/dns/common/clock"
	"github.com/haukened/localdns/internal/dns/common/log"
)

const (
	defaultCacheSize = 256
	defaultFPRate    = 0.01
)

type options struct {
	logger    log.Logger
	clock     clock.Clock
	cacheSize int
	fpRate    float64
}

// Option configures how a Store is built.
type Option func(*options)

// WithLogger sets the logger used while parsing and loading.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used to stamp LoadedAt.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithCacheSize sets the capacity of the per-store lookup memo. Zero or less disables it.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithFalsePositiveRate sets the target false-positive rate of the key prefilter.
func WithFalsePositiveRate(p float64) Option {
	return func(o *options) { o.fpRate = p }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    log.NewNoopLogger(),
		clock:     clock.RealClock{},
		cacheSize: defaultCacheSize,
		fpRate:    defaultFPRate,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) asOptions() []Option {
	return []Option{WithLogger(o.logger), WithClock(o.clock), WithCacheSize(o.cacheSize), WithFalsePositiveRate(o.fpRate)}
}
