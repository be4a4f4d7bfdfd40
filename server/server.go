package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/andrei-cloud/aecho"
)

// ErrServerClosed indicates the server has been stopped.
var ErrServerClosed = errors.New("server is closed")

// throughputSampleEvery is the message interval between throughput log events.
const throughputSampleEvery = 10_000

// Server is a framed TCP engine with a fixed resource envelope: MaxConns
// admission permits, MaxConns receive slots and MaxConns send slots, all
// allocated up front. The data path is accept loop -> session read loop ->
// outbound queue -> sender worker -> socket.
type Server struct {
	address  string         // network address to listen on.
	lnMu     sync.Mutex     // guards listener.
	listener net.Listener   // TCP listener for incoming connections.
	config   *ServerConfig  // server configuration options.
	handler  Handler        // handler to process decoded payloads.
	gate     *admissionGate // caps live connections to pool capacity.

	recvPool *aecho.SlotPool // receive buffers, one per admitted connection.
	sendPool *aecho.SlotPool // send buffers, bounding in-flight transmissions.
	outbound *outboundQueue  // decoded messages awaiting transmission.

	sendMu   sync.Mutex // guards sendCond waits.
	sendCond *sync.Cond // signaled whenever a send slot is returned.

	activeConns     sync.Map       // registry of active sessions.
	activeConnCount atomic.Int32   // atomic counter for live connections.
	connWG          sync.WaitGroup // tracks session goroutines.
	sendWG          sync.WaitGroup // tracks in-flight transmissions.
	stopChan        chan struct{}  // signals server shutdown.
	stopOnce        sync.Once      // makes Stop idempotent.

	acceptCtx    context.Context    // cancelled on Stop to unblock the gate.
	acceptCancel context.CancelFunc // cancels acceptCtx.

	msgCount    atomic.Uint64 // decoded messages since start.
	sampleStart atomic.Int64  // unix nanos at the current sample window start.
}

// NewServer creates a server bound to address once Start is called. A nil
// handler installs EchoHandler; a nil config uses defaults.
func NewServer(address string, handler Handler, config *ServerConfig) (*Server, error) {
	if address == "" {
		return nil, errors.New("address is required")
	}
	if handler == nil {
		handler = EchoHandler()
	}
	if config == nil {
		config = &ServerConfig{}
	}
	config.applyDefaults()

	s := &Server{
		address:  address,
		config:   config,
		handler:  handler,
		gate:     newAdmissionGate(config.MaxConns),
		recvPool: aecho.NewSlotPool(config.MaxConns, config.BufferSize),
		sendPool: aecho.NewSlotPool(config.MaxConns, config.BufferSize),
		outbound: newOutboundQueue(config.QueueSize),
		stopChan: make(chan struct{}),
	}
	s.sendCond = sync.NewCond(&s.sendMu)
	s.acceptCtx, s.acceptCancel = context.WithCancel(context.Background())

	return s, nil
}

// Start binds the listener and runs the accept loop and the sender worker.
// It blocks until Stop is called; bind or listen failures are returned
// immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.lnMu.Lock()
	s.listener = ln
	s.lnMu.Unlock()
	s.sampleStart.Store(time.Now().UnixNano())

	s.config.Logger.Infof("listening on %v", ln.Addr())

	eg := &errgroup.Group{}
	eg.Go(s.acceptLoop)
	eg.Go(s.senderLoop)

	return eg.Wait()
}

// Stop closes the listener, wakes every blocked worker and closes live
// sessions, then waits (bounded by ShutdownTimeout) for goroutines to finish.
func (s *Server) Stop() error {
	var err error

	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.acceptCancel()

		s.lnMu.Lock()
		if s.listener != nil {
			err = s.listener.Close()
		}
		s.lnMu.Unlock()

		s.outbound.close()

		s.sendMu.Lock()
		s.sendCond.Broadcast()
		s.sendMu.Unlock()

		s.activeConns.Range(func(_, val any) bool {
			if sess, ok := val.(*Session); ok {
				sess.teardown()
			}

			return true
		})

		done := make(chan struct{})
		go func() {
			s.connWG.Wait()
			s.sendWG.Wait()

			close(done)
		}()

		if s.config.ShutdownTimeout > 0 {
			select {
			case <-done:
			case <-time.After(s.config.ShutdownTimeout):
				s.config.Logger.Warnf("timeout waiting for connections to close")
			}
		} else {
			<-done
		}
	})

	return err
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ConnCount returns the number of live sessions.
func (s *Server) ConnCount() int {
	return int(s.activeConnCount.Load())
}

func (s *Server) stopping() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// acceptLoop admits connections one at a time: a permit from the gate, then
// one outstanding accept. Once the gate is saturated no accept is issued, so
// backpressure lands on the OS listen queue.
func (s *Server) acceptLoop() error {
	for {
		if err := s.gate.enter(s.acceptCtx); err != nil {
			return nil // shutting down.
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.gate.leave()

			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				time.Sleep(100 * time.Millisecond)

				continue
			}
			s.config.Logger.Errorf("accept error: %v", err)
			s.Stop() // unblock Start; the listener is unusable.

			return err
		}

		s.admit(conn)
	}
}

// admit binds an accepted socket to a pooled receive slot and starts its
// session. With the gate and the pool sharing one capacity a slot is always
// available here, but exhaustion is still handled: the connection is dropped
// with a logged notice, never an error.
func (s *Server) admit(conn net.Conn) {
	slot, ok := s.recvPool.Acquire()
	if !ok {
		s.config.Logger.Warnf(
			"no receive slot available, dropping connection from %v", conn.RemoteAddr(),
		)

		if err := conn.Close(); err != nil {
			s.config.Logger.Warnf("connection close error: %v", err)
		}
		s.gate.leave()

		return
	}

	sess := &Session{
		Conn:    conn,
		server:  s,
		slot:    slot,
		pending: -1,
	}
	sess.init()

	s.activeConns.Store(sess, sess)
	live := s.activeConnCount.Add(1)
	s.config.Logger.Infof("connection from %v admitted (%d live)", conn.RemoteAddr(), live)

	s.connWG.Add(1)
	go sess.readLoop()
}

// dispatch runs the handler on a decoded payload and queues the response for
// transmission. Handler errors are logged and the session keeps serving;
// enqueue fails only at shutdown.
func (s *Server) dispatch(sess *Session, payload []byte) error {
	resp, err := s.handler.HandleMessage(sess, payload)
	if err != nil {
		s.config.Logger.Errorf("handler error: %v", err)

		return nil
	}
	if resp == nil {
		return nil
	}

	if err := s.outbound.enqueue(outboundItem{payload: resp, sess: sess}); err != nil {
		return err
	}

	s.sample()

	return nil
}

// sample emits a throughput event every throughputSampleEvery messages.
func (s *Server) sample() {
	n := s.msgCount.Add(1)
	if n%throughputSampleEvery != 0 {
		return
	}

	now := time.Now().UnixNano()
	start := s.sampleStart.Swap(now)
	elapsed := time.Duration(now - start)

	s.config.Logger.Infof(
		"processed %d messages total, last %d in %v", n, throughputSampleEvery, elapsed,
	)
}

// senderLoop is the single sender worker: it drains the outbound queue in
// FIFO order, frames each payload into a pooled send slot and hands the
// transmission off. At most sendPool.Cap() transmissions are ever in flight.
func (s *Server) senderLoop() error {
	for {
		it, ok := s.outbound.dequeue()
		if !ok {
			return nil
		}

		slot := s.acquireSendSlot()
		if slot == nil {
			return nil // shutting down.
		}

		n, err := aecho.EncodeTo(slot.Buf, it.payload)
		if err != nil {
			s.config.Logger.Errorf("frame encode error: %v", err)
			s.releaseSendSlot(slot)

			continue
		}

		// The worker takes the session write lock in queue order, so sends to
		// one connection hit the wire in the order they were decoded; the
		// write itself runs concurrently across connections.
		it.sess.writeMu.Lock()
		s.sendWG.Add(1)
		go s.transmit(it.sess, slot, n)
	}
}

// acquireSendSlot blocks until a send slot is returned or the server stops.
// This is the send-side backpressure: the worker waits here instead of
// growing in-flight sends past the pool's fixed capacity.
func (s *Server) acquireSendSlot() *aecho.Slot {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for {
		if s.stopping() {
			return nil
		}

		if slot, ok := s.sendPool.Acquire(); ok {
			return slot
		}

		s.sendCond.Wait()
	}
}

// releaseSendSlot returns a slot and signals the blocked sender, if any.
func (s *Server) releaseSendSlot(slot *aecho.Slot) {
	s.sendPool.Release(slot)

	s.sendMu.Lock()
	s.sendCond.Signal()
	s.sendMu.Unlock()
}

// transmit writes one framed message back over the originating socket and
// returns the send slot. The caller holds the session write mutex; transmit
// releases it once the write completes. Write failures close the session.
func (s *Server) transmit(sess *Session, slot *aecho.Slot, n int) {
	defer s.sendWG.Done()
	defer s.releaseSendSlot(slot)

	if s.config.WriteTimeout > 0 {
		if err := sess.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
			s.config.Logger.Errorf("set write deadline error: %v", err)
		}
	}

	_, err := sess.Conn.Write(slot.Buf[:n])
	sess.writeMu.Unlock()

	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			s.config.Logger.Errorf("write error: %v", err)
		}
		sess.teardown()
	}
}
