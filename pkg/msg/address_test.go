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

package msg_test

import (
	"context"
	"testing"
	"time"

	"github.com/primetype/organix/pkg/msg"
)

// echoConsumer replies to request envelopes with their own payload
func echoConsumer(mailbox *msg.Mailbox) {
	for {
		select {
		case <-mailbox.Closed():
			return
		case envelope := <-mailbox.C():
			if envelope.ReplyExpected() {
				envelope.Reply(envelope.Payload())
			}
			envelope.Release()
		}
	}
}

func TestAddress_Request(t *testing.T) {
	mailbox, err := msg.NewMailbox("echo", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer mailbox.Close()
	go echoConsumer(mailbox)

	address := mailbox.Address()
	reply, err := address.Request(context.Background(), "ping", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if reply.(string) != "ping" {
		t.Errorf("wrong reply : %v", reply)
	}
}

func TestAddress_RequestTimeout(t *testing.T) {
	mailbox, err := msg.NewMailbox("slow", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer mailbox.Close()
	// no consumer - the request never gets a reply

	address := mailbox.Address()
	if _, err := address.Request(context.Background(), "ping", 20*time.Millisecond); err != msg.ErrReplyTimeout {
		t.Errorf("expected ErrReplyTimeout : %v", err)
	}
}

func TestAddress_RequestDropped(t *testing.T) {
	mailbox, err := msg.NewMailbox("deaf", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer mailbox.Close()
	// the consumer releases every envelope without replying
	go func() {
		for {
			select {
			case <-mailbox.Closed():
				return
			case envelope := <-mailbox.C():
				envelope.Release()
			}
		}
	}()

	address := mailbox.Address()
	if _, err := address.Request(context.Background(), "ping", time.Second); err != msg.ErrReplyDropped {
		t.Errorf("expected ErrReplyDropped : %v", err)
	}
}

func TestAddress_RequestContextCancelled(t *testing.T) {
	mailbox, err := msg.NewMailbox("slow", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer mailbox.Close()

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := mailbox.Address().Request(ctx, "ping", time.Minute)
		result <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-result; err != context.Canceled {
		t.Errorf("expected Canceled : %v", err)
	}
}

func TestAddress_Cloneable(t *testing.T) {
	mailbox, err := msg.NewMailbox("echo", 4)
	if err != nil {
		t.Fatal(err)
	}
	defer mailbox.Close()

	a := mailbox.Address()
	b := *a // a copied handle targets the same mailbox
	if err := a.Send(context.Background(), "from-a"); err != nil {
		t.Fatal(err)
	}
	if err := b.Send(context.Background(), "from-b"); err != nil {
		t.Fatal(err)
	}
	if mailbox.Depth() != 2 {
		t.Errorf("wrong depth : %d", mailbox.Depth())
	}
	if a.Owner() != "echo" || b.Owner() != "echo" {
		t.Error("wrong owner")
	}
}
