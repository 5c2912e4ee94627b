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

// Package msg provides bounded mailboxes for asynchronous message passing between
// services.
//
// Messaging Design:
//
//  1. Every service owns exactly one Mailbox - a bounded FIFO queue of Envelopes with a
//     single consumer. Capacity is fixed at creation; a full mailbox exerts
//     backpressure on senders.
//  2. Senders hold Address handles. Addresses are cheap to clone and never imply
//     ownership. Send suspends on a full mailbox, TrySend fails fast with
//     ErrMailboxFull, and Request awaits a one-shot reply with a timeout.
//  3. Envelope payloads are opaque to the runtime - they are only inspected by the
//     consuming service.
//  4. Envelope order from a given sender is preserved. There is no global ordering
//     guarantee across senders.
//  5. A closed mailbox fails senders fast with ErrMailboxClosed and abandons the
//     pending replies of drained envelopes, releasing requesters with ErrReplyDropped.
//
// All exported functions and methods are safe to be used concurrently unless specified
// otherwise.
package msg
