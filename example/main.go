// Command example is a load-generating client for the aecho server. It opens
// a handful of connections and round-trips framed messages over each,
// reporting per-request latency and overall throughput.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	log "github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrei-cloud/aecho"
)

func main() {
	var (
		addr     = flag.String("addr", "localhost:3456", "server address")
		conns    = flag.Int("conns", 2, "concurrent connections")
		requests = flag.Int("requests", 10000, "messages per connection")
	)
	flag.Parse()

	runtime.GOMAXPROCS(runtime.NumCPU())
	logger := log.New(os.Stdout).With().Timestamp().Logger()

	wg := errgroup.Group{}
	start := time.Now()

	for c := 0; c < *conns; c++ {
		c := c
		wg.Go(func() error {
			conn, err := net.Dial("tcp", *addr)
			if err != nil {
				return err
			}
			defer conn.Close()

			r := bufio.NewReader(conn)

			for i := 0; i < *requests; i++ {
				request := []byte(fmt.Sprintf("hello_%d_%d", c, i))

				reqStart := time.Now()
				if err := aecho.Write(conn, request); err != nil {
					return err
				}

				resp, err := aecho.Read(r)
				if err != nil {
					return err
				}
				if string(resp) != string(request) {
					return fmt.Errorf("echo mismatch: sent %q, got %q", request, resp)
				}

				if i%1000 == 0 {
					logger.Info().
						Int("conn", c).
						Dur("latency", time.Since(reqStart)).
						Msg("round trip")
				}
			}

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("load run failed")
	}

	total := *conns * *requests
	logger.Info().Msgf("finished %d round trips in %v", total, time.Since(start))
}
