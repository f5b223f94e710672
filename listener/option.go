package listener

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/logger"
)

// Option configures a Listener.
type Option func(*Listener)

// WithIDFunc sets the correlation id generator. Default is NanoID.
// fn must return a different non-empty string on every call.
func WithIDFunc(fn func() string) Option {
	return func(l *Listener) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// MaxWorkers sets how many Then callbacks may run at the same time. Default is 64.
func MaxWorkers(n int) Option {
	return func(l *Listener) {
		l.maxWorkers = n
	}
}

// WithLogger replaces the listener's logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// NanoID returns an 11 character base-36 id.
func NanoID() string {
	return gonanoid.MustGenerate(types.DefaultIDAlphabet, types.DefaultIDSize)
}

// UUID returns a random RFC 4122 id.
func UUID() string {
	return uuid.NewString()
}
