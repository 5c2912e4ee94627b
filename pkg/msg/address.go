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
	"context"
	"time"
)

// Address is a capability handle wrapping the sending end of a Mailbox.
// Addresses are freely cloneable - copying the handle is cheap and safe.
type Address struct {
	mailbox *Mailbox
}

// Owner returns the id of the service that owns the target mailbox
func (a *Address) Owner() string { return a.mailbox.owner }

// Send delivers the payload to the target mailbox with fire and forget semantics.
// If the mailbox is full, the send suspends until space frees up, the context is
// done, or the mailbox closes.
//
// Types of errors:
//	- ErrMailboxClosed
//	- context.Canceled / context.DeadlineExceeded
func (a *Address) Send(ctx context.Context, payload interface{}) error {
	return a.deliver(ctx, NewEnvelope(payload))
}

// TrySend delivers the payload without suspending.
// Returns ErrMailboxFull immediately if the mailbox is at capacity.
func (a *Address) TrySend(payload interface{}) error {
	if a.mailbox.IsClosed() {
		return ErrMailboxClosed
	}
	select {
	case a.mailbox.c <- NewEnvelope(payload):
		if a.mailbox.IsClosed() {
			a.mailbox.drain()
			return ErrMailboxClosed
		}
		return nil
	case <-a.mailbox.closed:
		return ErrMailboxClosed
	default:
		return ErrMailboxFull
	}
}

// Request delivers the payload and awaits the reply for up to the specified timeout.
//
// Types of errors:
//	- ErrMailboxClosed
//	- ErrReplyTimeout - the responder did not reply in time
//	- ErrReplyDropped - the responder released the envelope without replying
//	- context.Canceled / context.DeadlineExceeded
func (a *Address) Request(ctx context.Context, payload interface{}, timeout time.Duration) (interface{}, error) {
	envelope, reply := NewRequestEnvelope(payload)
	if err := a.deliver(ctx, envelope); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-reply.Channel():
		if !ok {
			return nil, ErrReplyDropped
		}
		return v, nil
	case <-timer.C:
		return nil, ErrReplyTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// deliver enqueues the envelope, suspending on a full mailbox.
// An enqueue that commits against a concurrent close that has already drained would
// strand the envelope - the post-send closed check catches it and drains again, so
// the envelope is released (reply waiters resolve promptly) instead of dropped silently.
func (a *Address) deliver(ctx context.Context, envelope *Envelope) error {
	if a.mailbox.IsClosed() {
		return ErrMailboxClosed
	}
	select {
	case a.mailbox.c <- envelope:
		if a.mailbox.IsClosed() {
			a.mailbox.drain()
			return ErrMailboxClosed
		}
		return nil
	case <-a.mailbox.closed:
		return ErrMailboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
