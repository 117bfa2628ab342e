package core

import (
	"time"

	"github.com/rs/zerolog"
)

// ServiceOption configures the optional collaborators of the core services.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger    zerolog.Logger
	publisher EventPublisher
	now       func() time.Time
}

func defaultOptions(opts []ServiceOption) serviceOptions {
	o := serviceOptions{
		logger:    zerolog.Nop(),
		publisher: NopPublisher{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(o *serviceOptions) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithClock overrides the time source; tests use it to pin timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}
