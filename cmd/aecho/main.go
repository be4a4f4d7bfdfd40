package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	log "github.com/rs/zerolog"

	"github.com/andrei-cloud/aecho"
	"github.com/andrei-cloud/aecho/server"
)

func main() {
	var (
		addr        = flag.String("addr", ":3456", "address to listen on")
		maxConns    = flag.Int("max-conns", server.DefaultMaxConns, "maximum concurrent connections")
		bufferSize  = flag.Int("buffer-size", server.DefaultBufferSize, "per-connection buffer size in bytes")
		queueSize   = flag.Int("queue-size", server.DefaultQueueSize, "outbound queue bound")
		idleTimeout = flag.Duration("idle-timeout", 0, "idle session timeout, 0 disables")
	)
	flag.Parse()

	runtime.GOMAXPROCS(runtime.NumCPU())
	logger := log.New(os.Stdout).With().Timestamp().Logger()

	srv, err := server.NewServer(*addr, nil, &server.ServerConfig{
		MaxConns:    *maxConns,
		BufferSize:  *bufferSize,
		QueueSize:   *queueSize,
		IdleTimeout: *idleTimeout,
		Logger:      aecho.NewZerologLogger(logger),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("server setup failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Msgf("received %v, shutting down", sig)

		if err := srv.Stop(); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}()

	start := time.Now()
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}

	logger.Info().Msgf("stopped after %v", time.Since(start))
}
