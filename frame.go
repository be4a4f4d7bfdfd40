package aecho

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

const (
	// HeaderSize is the size in bytes of the frame length header.
	HeaderSize = 4
)

// ErrMaxLenExceeded indicates the payload length exceeds the header range.
var ErrMaxLenExceeded = errors.New("maximum message length exceeded")

// ErrShortBuffer indicates the destination buffer cannot hold the frame.
var ErrShortBuffer = errors.New("destination buffer too small for frame")

// EncodeTo writes a complete frame (little-endian length header followed by
// the payload) into dst and returns the number of bytes written. dst is a
// caller-owned buffer, typically a pooled send slot; no allocation occurs.
func EncodeTo(dst, payload []byte) (int, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return 0, ErrMaxLenExceeded
	}
	total := HeaderSize + len(payload)
	if total > len(dst) {
		return 0, ErrShortBuffer
	}

	binary.LittleEndian.PutUint32(dst[:HeaderSize], uint32(len(payload)))
	copy(dst[HeaderSize:total], payload)

	return total, nil
}

// Write writes data prefixed with a little-endian length header.
func Write(w io.Writer, in []byte) error {
	if uint64(len(in)) > math.MaxUint32 {
		return ErrMaxLenExceeded
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(in)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(in) == 0 {
		return nil
	}
	if _, err := w.Write(in); err != nil {
		return err
	}

	return nil
}

// Read reads one frame and returns its payload. It blocks until the header
// and the full payload have been received.
func Read(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(header[:])
	message := make([]byte, int(length))
	if _, err := io.ReadFull(r, message); err != nil {
		return nil, err
	}

	return message, nil
}
