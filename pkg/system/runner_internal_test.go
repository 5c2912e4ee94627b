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

package system

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/primetype/organix/pkg/service"
)

// An execution unit that passes Starting just as the shutdown coordinator resolves the
// service to a terminal state is never killed by anyone - it must terminate itself once
// the mailbox closes instead of idling in its message loop forever.
func TestRunner_OrphanedUnitResolvesOnMailboxClose(t *testing.T) {
	registry := NewRegistry()
	startGate := make(chan struct{})
	var starts int32
	stopped := make(chan struct{}, 2)
	registry.MustRegister(
		service.NewDescriptor("racer", "1.0.0"),
		service.HandlerFuncs{
			Start: func(ctx *service.Context) error {
				atomic.AddInt32(&starts, 1)
				<-startGate
				return nil
			},
			Stop: func(ctx *service.Context, reason error) error {
				stopped <- struct{}{}
				return nil
			},
		},
	)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	e := sys.entries[0]

	r := sys.startRunner(e)
	deadline := time.Now().Add(3 * time.Second)
	for {
		if st, _ := e.state.State(); st.Starting() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("unit never reached Starting")
		}
		time.Sleep(time.Millisecond)
	}

	// the coordinator's terminal transition lands while the unit is still mid-start
	if !sys.setState(e, service.Stopped) {
		t.Fatal("Starting -> Stopped should be a valid transition")
	}
	close(startGate)

	// nothing kills the unit - closing the mailbox must resolve it, through OnStop
	e.mailbox.Close()
	select {
	case <-r.Dead():
	case <-time.After(3 * time.Second):
		t.Fatal("orphaned execution unit did not terminate")
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("OnStop was not invoked for the orphaned unit")
	}
	if err := r.Err(); err != nil {
		t.Errorf("orphaned unit should resolve cleanly : %v", err)
	}

	// once the state is terminal a fresh unit cannot pass Starting - OnStart never runs
	r2 := sys.startRunner(e)
	select {
	case <-r2.Dead():
	case <-time.After(time.Second):
		t.Fatal("a unit started on a terminal state should resolve immediately")
	}
	if n := atomic.LoadInt32(&starts); n != 1 {
		t.Errorf("OnStart should not run for a terminal service : %d starts", n)
	}
}
