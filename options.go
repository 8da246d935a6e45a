package labgo

import (
	"log/slog"

	"github.com/hupe1980/labgo/arrays"
)

type options struct {
	logger      *Logger
	serializer  *arrays.Serializer
	parallelism int
}

// Option configures Store constructor behavior.
type Option func(*options)

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithArraySerializer configures how large numeric arrays are offloaded.
// Without it, arrays stay inline in their documents and oversized
// payloads are rejected.
func WithArraySerializer(s *arrays.Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithParallelism bounds the number of concurrent per-document updates
// during multi-document move and delete. Values below 1 disable
// parallelism.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.parallelism = n
	}
}
