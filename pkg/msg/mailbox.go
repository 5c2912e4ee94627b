// Copyright (c) 2020 PrimeType, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msg

import (
	"sync"
)

// NewMailbox creates a new bounded Mailbox owned by the named consumer.
// The capacity must be > 0 - senders experience backpressure once the mailbox is full.
func NewMailbox(owner string, capacity int) (*Mailbox, error) {
	if owner == "" {
		return nil, ErrMailboxOwnerBlank
	}
	if capacity <= 0 {
		return nil, &InvalidCapacityError{Owner: owner, Capacity: capacity}
	}
	return &Mailbox{
		owner:    owner,
		capacity: capacity,
		c:        make(chan *Envelope, capacity),
		closed:   make(chan struct{}),
	}, nil
}

// Mailbox is a bounded FIFO queue of Envelope(s) with exactly one owning consumer.
//
// Senders interact with the mailbox only through Address handles. Envelope order
// from a given sender is preserved - envelopes are delivered on a single buffered
// channel, and a sender blocked on a full mailbox holds its place in channel order.
//
// The mailbox survives restarts of its owning service - Address handles held by
// other services stay valid while the service is being supervised, and envelopes
// sent during a restart are queued up to the mailbox capacity.
type Mailbox struct {
	owner    string
	capacity int

	c chan *Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

// Owner returns the id of the owning consumer
func (a *Mailbox) Owner() string { return a.owner }

// Capacity returns the mailbox capacity
func (a *Mailbox) Capacity() int { return a.capacity }

// Depth returns the number of envelopes currently queued
func (a *Mailbox) Depth() int { return len(a.c) }

// C returns the receive channel. The mailbox has exactly one owning consumer -
// only the owning service's execution unit may receive on this channel.
func (a *Mailbox) C() <-chan *Envelope { return a.c }

// Closed returns a channel that is closed when the mailbox is closed
func (a *Mailbox) Closed() <-chan struct{} { return a.closed }

// IsClosed returns true if the mailbox has been closed
func (a *Mailbox) IsClosed() bool {
	select {
	case <-a.closed:
		return true
	default:
		return false
	}
}

// Address returns a cloneable send handle for this mailbox.
// Holding an Address never implies ownership of the service.
func (a *Mailbox) Address() *Address {
	return &Address{mailbox: a}
}

// Close closes the mailbox to senders and drains undelivered envelopes.
// Senders blocked on a full mailbox are released with ErrMailboxClosed.
// Pending replies of drained envelopes are abandoned, which releases their
// requesters with ErrReplyDropped.
func (a *Mailbox) Close() {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.drain()
	})
}

// drain releases every queued envelope. Called after the mailbox is closed - by Close
// itself and by a sender whose enqueue committed against a close that had already
// drained, so that no envelope is ever silently stranded.
func (a *Mailbox) drain() {
	for {
		select {
		case envelope := <-a.c:
			envelope.Release()
		default:
			return
		}
	}
}
