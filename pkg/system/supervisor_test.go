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

package system_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/primetype/organix/pkg/msg"
	"github.com/primetype/organix/pkg/service"
	"github.com/primetype/organix/pkg/system"
)

func TestSupervisor_RestartUntilStartSucceeds(t *testing.T) {
	var attempts int32
	flaky := service.HandlerFuncs{
		Start: func(*service.Context) error {
			if atomic.AddInt32(&attempts, 1) <= 2 {
				return errors.New("BOOM")
			}
			return nil
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(
		service.NewDescriptor("flaky", "1.0.0",
			service.RestartWith(service.FixedRetries(2, time.Millisecond)),
		),
		flaky,
	)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)
	defer func() { sys.Shutdown(nil); <-done }()

	// the third attempt succeeds within the policy's two retries
	if err := sys.AwaitRunning("flaky", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("expected 3 attempts : %d", n)
	}
	status, err := sys.Status("flaky")
	if err != nil {
		t.Fatal(err)
	}
	if status.Restarts != 2 {
		t.Errorf("expected 2 recorded failures : %d", status.Restarts)
	}
}

func TestSupervisor_MaxRetriesExceeded(t *testing.T) {
	var attempts int32
	broken := service.HandlerFuncs{
		Start: func(*service.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("BOOM")
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(
		service.NewDescriptor("broken", "1.0.0",
			service.RestartWith(service.FixedRetries(1, time.Millisecond)),
		),
		broken,
	)
	registry.MustRegister(
		service.NewDescriptor("dependent", "1.0.0", service.DependsOn("broken")),
		noop(),
	)
	registry.MustRegister(service.NewDescriptor("healthy", "1.0.0"), noop())

	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)

	if err := sys.AwaitTerminal("broken", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("FixedRetries(1) should attempt exactly twice : %d", n)
	}
	state, _ := sys.State("broken")
	if !state.Failed() {
		t.Errorf("expected Failed : %v", state)
	}
	status, _ := sys.Status("broken")
	if _, ok := status.LastFailure.(*system.MaxRetriesExceededError); !ok {
		t.Errorf("expected MaxRetriesExceededError : %v", status.LastFailure)
	}

	// the failure cascades to the dependent
	if err := sys.AwaitTerminal("dependent", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	state, _ = sys.State("dependent")
	if !state.Failed() {
		t.Errorf("dependent should have failed : %v", state)
	}
	status, _ = sys.Status("dependent")
	if _, ok := status.LastFailure.(*service.DependencyFailedError); !ok {
		t.Errorf("expected DependencyFailedError : %v", status.LastFailure)
	}

	// an unrelated service keeps running, and so does the system
	if err := sys.AwaitRunning("healthy", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		t.Fatalf("a non-critical failure should not take the system down : %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// the failed service's mailbox rejects senders
	address, _ := sys.AddressOf("broken")
	if err := address.TrySend("hello"); err != msg.ErrMailboxClosed {
		t.Errorf("expected ErrMailboxClosed : %v", err)
	}

	sys.Shutdown(nil)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	report := sys.ShutdownReport()
	t.Log(report)
	if !contains(report.Failed, "broken") || !contains(report.Failed, "dependent") {
		t.Errorf("failed services should be reported : %v", report)
	}
	if !contains(report.Stopped, "healthy") {
		t.Errorf("healthy should have stopped cleanly : %v", report)
	}
}

func TestSupervisor_CriticalFailureShutsSystemDown(t *testing.T) {
	vital := service.HandlerFuncs{
		Message: func(*service.Context, *msg.Envelope) error {
			return errors.New("BOOM")
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(service.NewDescriptor("vital", "1.0.0", service.Critical()), vital)
	registry.MustRegister(service.NewDescriptor("bystander", "1.0.0"), noop())

	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)

	if err := sys.AwaitRunning("vital", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	address, err := sys.AddressOf("vital")
	if err != nil {
		t.Fatal(err)
	}
	if err := address.Send(context.Background(), "poison"); err != nil {
		t.Fatal(err)
	}

	err = <-done
	critical, ok := err.(*system.CriticalServiceFailedError)
	if !ok {
		t.Fatalf("expected CriticalServiceFailedError : %v", err)
	}
	if critical.ID != "vital" {
		t.Errorf("wrong service : %v", critical)
	}

	report := sys.ShutdownReport()
	t.Log(report)
	if report.Reason != err {
		t.Errorf("the report should carry the critical failure : %v", report.Reason)
	}
	if !contains(report.Stopped, "bystander") {
		t.Errorf("bystander should have been shut down cleanly : %v", report)
	}
}

func TestSupervisor_MailboxSurvivesRestart(t *testing.T) {
	rec := &recorder{}
	handler := service.HandlerFuncs{
		Message: func(ctx *service.Context, envelope *msg.Envelope) error {
			payload := envelope.Payload().(string)
			if payload == "boom" {
				return errors.New("BOOM")
			}
			rec.add(payload)
			return nil
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(
		service.NewDescriptor("worker", "1.0.0",
			service.RestartWith(service.Always(time.Millisecond)),
		),
		handler,
	)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)
	defer func() { sys.Shutdown(nil); <-done }()

	if err := sys.AwaitRunning("worker", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	address, err := sys.AddressOf("worker")
	if err != nil {
		t.Fatal(err)
	}

	// the poison message kills the execution unit; the one queued behind it must be
	// processed by the restarted execution unit from the same mailbox
	if err := address.Send(context.Background(), "boom"); err != nil {
		t.Fatal(err)
	}
	if err := address.Send(context.Background(), "survivor"); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for indexOf(rec.list(), "survivor") == -1 {
		if time.Now().After(deadline) {
			t.Fatalf("queued message was lost across the restart : %v", rec.list())
		}
		time.Sleep(5 * time.Millisecond)
	}

	status, err := sys.Status("worker")
	if err != nil {
		t.Fatal(err)
	}
	if status.Restarts < 1 {
		t.Errorf("expected at least one restart : %d", status.Restarts)
	}
}

func TestSupervisor_NeverPolicyFailsPermanently(t *testing.T) {
	handler := service.HandlerFuncs{
		Message: func(*service.Context, *msg.Envelope) error {
			return errors.New("BOOM")
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(service.NewDescriptor("fragile", "1.0.0"), handler)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)
	defer func() { sys.Shutdown(nil); <-done }()

	if err := sys.AwaitRunning("fragile", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	address, _ := sys.AddressOf("fragile")
	if err := address.Send(context.Background(), "poison"); err != nil {
		t.Fatal(err)
	}

	if err := sys.AwaitTerminal("fragile", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	state, _ := sys.State("fragile")
	if !state.Failed() {
		t.Errorf("expected Failed : %v", state)
	}
	status, _ := sys.Status("fragile")
	if _, ok := status.LastFailure.(*service.MessageError); !ok {
		t.Errorf("expected MessageError : %v", status.LastFailure)
	}
}

func TestSupervisor_PanicIsAFailure(t *testing.T) {
	handler := service.HandlerFuncs{
		Message: func(*service.Context, *msg.Envelope) error {
			panic("BOOM")
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(service.NewDescriptor("panicky", "1.0.0"), handler)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)
	defer func() { sys.Shutdown(nil); <-done }()

	if err := sys.AwaitRunning("panicky", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	address, _ := sys.AddressOf("panicky")
	if err := address.Send(context.Background(), "poison"); err != nil {
		t.Fatal(err)
	}

	if err := sys.AwaitTerminal("panicky", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	status, _ := sys.Status("panicky")
	failure, ok := status.LastFailure.(*service.MessageError)
	if !ok {
		t.Fatalf("expected MessageError : %v", status.LastFailure)
	}
	if _, ok := failure.Err.(*service.PanicError); !ok {
		t.Errorf("expected PanicError : %v", failure.Err)
	}
}

func TestSupervisor_StartTimeout(t *testing.T) {
	handler := service.HandlerFuncs{
		Start: func(ctx *service.Context) error {
			select {
			case <-ctx.StopTrigger():
			case <-time.After(3 * time.Second):
			}
			return nil
		},
	}

	registry := system.NewRegistry()
	registry.MustRegister(
		service.NewDescriptor("sluggish", "1.0.0", service.StartTimeout(50*time.Millisecond)),
		handler,
	)
	sys, err := registry.Build()
	if err != nil {
		t.Fatal(err)
	}
	done := runSystem(sys)
	defer func() { sys.Shutdown(nil); <-done }()

	if err := sys.AwaitTerminal("sluggish", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	status, _ := sys.Status("sluggish")
	if _, ok := status.LastFailure.(*service.StartTimeoutError); !ok {
		t.Errorf("expected StartTimeoutError : %v", status.LastFailure)
	}
}
