package aecho

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	const bufferSize = 1024

	cases := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"single byte", 1},
		{"typical", 128},
		{"fills buffer", bufferSize - HeaderSize - 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			payload := make([]byte, c.size)
			for i := range payload {
				payload[i] = byte(i)
			}

			var wire bytes.Buffer
			require.NoError(t, Write(&wire, payload))
			require.Equal(t, HeaderSize+c.size, wire.Len())

			decoded, err := Read(&wire)
			require.NoError(t, err)
			require.Equal(t, payload, decoded)
		})
	}
}

func TestFrameLayout(t *testing.T) {
	// The length header is a little-endian u32 counting payload bytes only.
	var wire bytes.Buffer
	require.NoError(t, Write(&wire, []byte("hello")))

	expect := []byte{0x05, 0x00, 0x00, 0x00, 'h', 'e', 'l', 'l', 'o'}
	require.Equal(t, expect, wire.Bytes())
}

func TestEncodeTo(t *testing.T) {
	t.Run("writes frame in place", func(t *testing.T) {
		dst := make([]byte, 32)
		n, err := EncodeTo(dst, []byte("hello"))
		require.NoError(t, err)
		require.Equal(t, HeaderSize+5, n)
		require.Equal(t, []byte{0x05, 0x00, 0x00, 0x00, 'h', 'e', 'l', 'l', 'o'}, dst[:n])
	})

	t.Run("empty payload", func(t *testing.T) {
		dst := make([]byte, HeaderSize)
		n, err := EncodeTo(dst, nil)
		require.NoError(t, err)
		require.Equal(t, HeaderSize, n)
		require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, dst[:n])
	})

	t.Run("short destination", func(t *testing.T) {
		dst := make([]byte, 8)
		_, err := EncodeTo(dst, make([]byte, 5))
		require.ErrorIs(t, err, ErrShortBuffer)
	})
}

func TestReadIncompleteFrame(t *testing.T) {
	t.Run("truncated header", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte{0x05, 0x00}))
		require.Error(t, err)
	})

	t.Run("truncated body", func(t *testing.T) {
		_, err := Read(bytes.NewReader([]byte{0x05, 0x00, 0x00, 0x00, 'h', 'e'}))
		require.Error(t, err)
	})
}
