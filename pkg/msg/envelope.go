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
	"time"

	"github.com/json-iterator/go"
	"github.com/nats-io/nuid"
)

// NewEnvelope wraps the payload in a new Envelope with a unique id.
// The payload is opaque to the runtime - it is only inspected by the consuming service.
func NewEnvelope(payload interface{}) *Envelope {
	return &Envelope{
		id:      nuid.Next(),
		created: time.Now(),
		payload: payload,
	}
}

// NewRequestEnvelope wraps the payload in a new Envelope carrying a one-shot Reply.
// The Reply is resolved by the consuming service via Envelope.Reply(), or abandoned
// when the envelope is released without a reply.
func NewRequestEnvelope(payload interface{}) (*Envelope, *Reply) {
	envelope := NewEnvelope(payload)
	envelope.reply = newReply()
	return envelope, envelope.reply
}

// Envelope is a message envelope, i.e., an opaque payload plus an optional one-shot reply channel.
type Envelope struct {
	id      string
	created time.Time

	payload interface{}

	reply *Reply
}

// Id returns the unique envelope id
func (a *Envelope) Id() string { return a.id }

// Created returns when the envelope was created
func (a *Envelope) Created() time.Time { return a.created }

// Payload returns the message payload
func (a *Envelope) Payload() interface{} { return a.payload }

// ReplyExpected returns true if the sender is waiting on a reply
func (a *Envelope) ReplyExpected() bool { return a.reply != nil }

// Reply resolves the envelope's reply channel with the specified value.
// Returns ErrNoReply if the envelope carries no reply channel.
// Replying more than once is a no-op - only the first reply is delivered.
func (a *Envelope) Reply(v interface{}) error {
	if a.reply == nil {
		return ErrNoReply
	}
	a.reply.deliver(v)
	return nil
}

// Release abandons the envelope's pending reply, if any.
// A sender blocked on the reply is released with ErrReplyDropped.
// The runtime invokes Release after the consuming service is done with the envelope,
// and when undelivered envelopes are drained from a closing mailbox.
func (a *Envelope) Release() {
	if a.reply != nil {
		a.reply.abandon()
	}
}

func (a *Envelope) String() string {
	type envelope struct {
		Id            string
		Created       time.Time
		Payload       interface{}
		ReplyExpected bool
	}
	json, _ := jsoniter.Marshal(&envelope{a.id, a.created, a.payload, a.reply != nil})
	return string(json)
}

func newReply() *Reply {
	return &Reply{c: make(chan interface{}, 1)}
}

// Reply is a one-shot reply channel.
// It is resolved exactly once - either with a value, or by abandonment when the
// responder releases the envelope without replying.
type Reply struct {
	once sync.Once
	// buffered so the responder never blocks; closed once resolved
	c chan interface{}
}

func (a *Reply) deliver(v interface{}) {
	a.once.Do(func() {
		a.c <- v
		close(a.c)
	})
}

func (a *Reply) abandon() {
	a.once.Do(func() {
		close(a.c)
	})
}

// Channel returns the channel the reply is delivered on.
// The channel is closed once the reply is resolved - a receive that reports a
// closed channel without a value means the responder dropped the reply.
func (a *Reply) Channel() <-chan interface{} {
	return a.c
}
