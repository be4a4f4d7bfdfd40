package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/andrei-cloud/aecho"
)

// ErrFrameTooLarge indicates a decoded length prefix that can never complete
// inside the fixed receive buffer.
var ErrFrameTooLarge = errors.New("frame exceeds receive buffer capacity")

// Session tracks one accepted connection: the live socket, the sliding
// receive-window offsets into its pooled buffer, and the in-progress decode
// state. Offsets are touched only by the session's own read loop, so they
// need no lock.
type Session struct {
	Conn net.Conn // underlying network connection.

	server    *Server     // reference to parent server.
	slot      *aecho.Slot // pooled receive buffer, held for the session's lifetime.
	dataStart int         // index where unconsumed bytes begin.
	nextRecv  int         // index where the next read appends.
	pending   int         // remaining body bytes; -1 while awaiting a header.
	writeMu   sync.Mutex  // serializes concurrent transmissions.
	closeOnce sync.Once   // makes teardown idempotent.
}

// init configures TCP keepalive settings on the connection.
func (s *Session) init() {
	if tcpConn, ok := s.Conn.(*net.TCPConn); ok {
		if s.server.config.KeepAliveInterval > 0 {
			tcpConn.SetKeepAlive(true)

			tcpConn.SetKeepAlivePeriod(s.server.config.KeepAliveInterval)
		}
	}
}

// readLoop drives the receive pipeline: read into the window, decode as many
// complete frames as the buffered bytes allow, compact when the buffer fills,
// repeat. A zero-byte read, a read error, or a protocol violation ends the
// session.
func (s *Session) readLoop() {
	defer s.server.connWG.Done()
	defer s.teardown()

	buf := s.slot.Buf

	for {
		if s.server.config.IdleTimeout > 0 {
			deadline := time.Now().Add(s.server.config.IdleTimeout)
			if err := s.Conn.SetReadDeadline(deadline); err != nil {
				s.server.config.Logger.Errorf("set read deadline error: %v", err)
			}
		}

		n, err := s.Conn.Read(buf[s.nextRecv:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.server.config.Logger.Infof("closing idle connection: %v", s.Conn.RemoteAddr())
			}

			return
		}
		if n == 0 {
			return
		}

		s.nextRecv += n

		if err := s.decode(); err != nil {
			if !errors.Is(err, ErrServerClosed) {
				s.server.config.Logger.Errorf(
					"protocol error from %v: %v", s.Conn.RemoteAddr(), err,
				)
			}

			return
		}

		// The window reached the buffer end; slide the unconsumed tail down
		// so the next read has room. This is what lets frames straddle an
		// arbitrary number of reads inside one fixed allocation.
		if s.nextRecv == len(buf) {
			s.compact()
		}
	}
}

// decode runs the two-state framing machine over the unread window until no
// further progress is possible. Complete payloads are copied out and handed
// to the server for dispatch.
func (s *Session) decode() error {
	buf := s.slot.Buf

	for {
		unread := s.nextRecv - s.dataStart

		if s.pending < 0 { // awaiting header.
			if unread < aecho.HeaderSize {
				return nil
			}

			length := int(binary.LittleEndian.Uint32(buf[s.dataStart:]))
			if length > len(buf)-aecho.HeaderSize {
				return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
			}

			s.pending = length
			s.dataStart += aecho.HeaderSize

			continue
		}

		// Awaiting body.
		if unread < s.pending {
			return nil
		}

		payload := make([]byte, s.pending)
		copy(payload, buf[s.dataStart:s.dataStart+s.pending])

		s.dataStart += s.pending
		s.pending = -1

		if err := s.server.dispatch(s, payload); err != nil {
			return err
		}
	}
}

// compact copies the unconsumed tail to offset 0 and resets the window.
func (s *Session) compact() {
	buf := s.slot.Buf
	tail := s.nextRecv - s.dataStart

	copy(buf[:tail], buf[s.dataStart:s.nextRecv])
	s.dataStart = 0
	s.nextRecv = tail
}

// teardown releases everything the session holds: the socket, its receive
// slot, its admission permit and its place in the live-connection registry.
// Safe to call from both the read loop and the server's shutdown path; only
// the first call has any effect.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		srv := s.server

		if err := s.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			srv.config.Logger.Warnf("connection close error: %v", err)
		}

		srv.recvPool.Release(s.slot)
		srv.gate.leave()
		srv.activeConns.Delete(s)

		live := srv.activeConnCount.Add(-1)
		srv.config.Logger.Infof("connection %v closed (%d live)", s.Conn.RemoteAddr(), live)
	})
}
