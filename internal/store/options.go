package store

import "time"

// Option configures MemoryStore and SQLStore.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock that picks the century of two-digit publish
// years. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
