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
	"errors"
	"fmt"
)

var (
	// ErrMailboxFull indicates a non-suspending send found the mailbox at capacity
	ErrMailboxFull = errors.New("Mailbox is full")

	// ErrMailboxClosed indicates the target mailbox is closed
	ErrMailboxClosed = errors.New("Mailbox is closed")

	// ErrMailboxOwnerBlank indicates the mailbox owner id is blank
	ErrMailboxOwnerBlank = errors.New("Mailbox owner cannot be blank")

	// ErrReplyTimeout indicates the responder did not reply within the request timeout
	ErrReplyTimeout = errors.New("Reply timed out")

	// ErrReplyDropped indicates the responder released the envelope without replying
	ErrReplyDropped = errors.New("Responder dropped the reply")

	// ErrNoReply indicates a reply was attempted on an envelope that carries no reply channel
	ErrNoReply = errors.New("Envelope has no reply channel")
)

// InvalidCapacityError indicates a mailbox was configured with capacity <= 0
type InvalidCapacityError struct {
	Owner    string
	Capacity int
}

func (e *InvalidCapacityError) Error() string {
	return fmt.Sprintf("Mailbox capacity must be > 0 : owner = %s, capacity = %d", e.Owner, e.Capacity)
}
