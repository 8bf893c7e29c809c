// Package dataversion names a committed state of the ledger, the client
// registry and the dispute log together. Every committed write to any of them
// advances the version, so a view cached under one version is current for as
// long as the version has not moved.
package dataversion

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Version identifies a committed data state. N only grows within one Epoch;
// the epoch changes whenever the counter could start over.
type Version struct {
	Epoch string
	N     int64
}

func (v Version) String() string {
	return fmt.Sprintf("%s:%d", v.Epoch, v.N)
}

// Counter is the version source shared by the in-memory stores. Each process
// gets a fresh epoch.
//
// Writers call Bump after their change is visible to readers. Readers call
// Current before reading, so anything read afterwards reflects at least
// every write up to the returned version.
type Counter struct {
	epoch string
	n     atomic.Int64
}

func NewCounter() *Counter {
	return &Counter{epoch: uuid.NewString()}
}

// Bump advances the version. A nil Counter ignores it.
func (c *Counter) Bump() {
	if c != nil {
		c.n.Add(1)
	}
}

func (c *Counter) Current() Version {
	if c == nil {
		return Version{}
	}
	return Version{Epoch: c.epoch, N: c.n.Load()}
}
