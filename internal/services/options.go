// Package services holds the use cases behind the HTTP API. Every method
// takes the authenticated user id explicitly; nothing is read from
// ambient request state.
package services

import (
	"time"

	"github.com/google/uuid"

	"fintrack/internal/log"
)

// Option customises a service.
type Option func(*options)

type options struct {
	now    func() time.Time
	newID  func() string
	logger *log.Logger
}

func buildOptions(component string, opts []Option) options {
	o := options{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.DefaultConfig())
	}
	o.logger = o.logger.WithComponent(component)
	return o
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithLogger sets the base logger; the service adds its own component.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// stamp is the current instant at the precision every backend can store.
func (o options) stamp() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}
