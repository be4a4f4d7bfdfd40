package server

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// admissionGate caps the number of simultaneously admitted connections. It is
// the sole inbound flow-control knob: once saturated, the accept loop stops
// issuing accepts and backpressure lands on the OS listen queue.
type admissionGate struct {
	sem      *semaphore.Weighted
	maxConns int64
}

func newAdmissionGate(maxConns int) *admissionGate {
	return &admissionGate{
		sem:      semaphore.NewWeighted(int64(maxConns)),
		maxConns: int64(maxConns),
	}
}

// enter blocks until a permit is available or ctx is done.
func (g *admissionGate) enter(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// leave returns a permit.
func (g *admissionGate) leave() {
	g.sem.Release(1)
}
