package kura

import "github.com/sirupsen/logrus"

type options struct {
	log             *logrus.Entry
	types           *TypeRegistry
	chunkBytes      int
	chunkCapacity   int
	initialCapacity int
}

// Option configures a World at construction time.
type Option func(*options)

// WithLogger sets the logger the World and its storage report to.
//
// If nil is passed, the standard logrus logger is used with a
// component=kura field.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithTypes makes the World resolve types through an existing registry, so
// several worlds can share registrations.
func WithTypes(r *TypeRegistry) Option {
	return func(o *options) {
		o.types = r
	}
}

// WithChunkBytes sets the byte budget per chunk used to derive chunk
// capacities. Ignored when WithChunkCapacity is set.
func WithChunkBytes(n int) Option {
	return func(o *options) {
		o.chunkBytes = n
	}
}

// WithChunkCapacity fixes the entity capacity of every chunk.
func WithChunkCapacity(n int) Option {
	return func(o *options) {
		o.chunkCapacity = n
	}
}

// WithInitialCapacity pre-sizes the entity allocator.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

func defaultOptions() options {
	return options{
		chunkBytes:      DefaultChunkBytes,
		initialCapacity: 1024,
	}
}
