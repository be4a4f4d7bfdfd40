// Package aecho provides a high-throughput framed TCP echo engine built
// around fixed, pre-allocated I/O resources.
//
// Features:
//   - Message framing: EncodeTo, Write and Read handle a 4-byte little-endian
//     length header and payload framing for byte slices.
//   - Slot Pool: NewSlotPool pre-allocates a fixed set of reusable I/O
//     buffers handed out and returned under mutual exclusion, so the hot
//     path never allocates per message or per connection.
//   - TCP Server: server.NewServer runs an admission-gated accept loop, a
//     per-connection framing state machine with buffer compaction, and a
//     single sender worker draining a bounded outbound queue through a
//     pooled set of send buffers.
//
// Basic Server Example:
//
//	srv, err := server.NewServer(":9000", nil, nil) // nil handler echoes
//	if err != nil {
//	    // handle error
//	}
//	go func() {
//	    if err := srv.Start(); err != nil {
//	        // handle error
//	    }
//	}()
//	defer srv.Stop()
//
// Basic Client Example:
//
//	conn, _ := net.Dial("tcp", "localhost:9000")
//	aecho.Write(conn, []byte("hello"))
//	resp, _ := aecho.Read(conn)
//
// For more details and configuration options, see the README.
package aecho
