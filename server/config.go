package server

import (
	"time"

	"github.com/andrei-cloud/aecho"
)

const (
	DefaultMaxConns          = 64               // default maximum concurrent connections.
	DefaultBufferSize        = 64 * 1024        // default per-connection buffer length.
	DefaultQueueSize         = 1024             // default outbound queue bound.
	DefaultWriteTimeout      = 5 * time.Second  // default write timeout duration.
	DefaultIdleTimeout       = 0 * time.Second  // default idle timeout disables idle closure.
	DefaultShutdownTimeout   = 5 * time.Second  // default shutdown timeout duration.
	DefaultKeepAliveInterval = 30 * time.Second // default TCP keepalive period.
)

// ServerConfig configures the engine. MaxConns sizes the admission gate and
// both buffer pools; BufferSize must exceed the header size plus the largest
// expected message or framing stalls on oversized frames.
type ServerConfig struct {
	MaxConns          int           // maximum concurrent connections; sizes both slot pools.
	BufferSize        int           // fixed receive/send buffer length per slot.
	QueueSize         int           // outbound queue bound; producers block when full.
	WriteTimeout      time.Duration // maximum duration for send operations.
	IdleTimeout       time.Duration // duration a connection can remain idle; 0 disables.
	ShutdownTimeout   time.Duration // grace period for shutdown wait.
	KeepAliveInterval time.Duration // interval for TCP keepalive probes.
	Logger            aecho.Logger  // optional sink for engine events.
}

func (c *ServerConfig) applyDefaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}

	if c.BufferSize <= aecho.HeaderSize {
		c.BufferSize = DefaultBufferSize
	}

	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}

	if c.Logger == nil {
		c.Logger = &aecho.NoopLogger{}
	}
}
