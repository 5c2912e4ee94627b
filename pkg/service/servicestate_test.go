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

package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/primetype/organix/pkg/service"
)

func TestNewServiceState(t *testing.T) {
	s := service.NewServiceState()
	t.Log(s)

	state, timestamp := s.State()
	if !state.Registered() {
		t.Errorf("initial state should be Registered : %v", state)
	}
	if timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if s.FailureCause() != nil {
		t.Error("new state should have no failure cause")
	}
}

func TestServiceState_NormalLifecycle(t *testing.T) {
	s := service.NewServiceState()
	for _, transition := range []func() (bool, error){s.Starting, s.Running, s.Stopping, s.Stopped} {
		transitioned, err := transition()
		if err != nil {
			t.Fatal(err)
		}
		if !transitioned {
			t.Fatal("should have transitioned")
		}
	}
	if state, _ := s.State(); !state.Stopped() {
		t.Errorf("expected Stopped : %v", state)
	}
}

func TestServiceState_InvalidTransition(t *testing.T) {
	s := service.NewServiceState()
	transitioned, err := s.Running()
	if transitioned {
		t.Error("Registered -> Running should not be permitted")
	}
	invalid, ok := err.(*service.InvalidStateTransition)
	if !ok {
		t.Fatalf("expected InvalidStateTransition : %v", err)
	}
	if invalid.From != service.Registered || invalid.To != service.Running {
		t.Errorf("wrong error : %v", invalid)
	}

	// same state transitions are no-ops, not errors
	if transitioned, err := s.SetState(service.Registered); transitioned || err != nil {
		t.Errorf("same state transition should be a no-op : %v %v", transitioned, err)
	}
}

func TestServiceState_Failed(t *testing.T) {
	s := service.NewServiceState()
	s.Starting()

	cause := errors.New("BOOM")
	if !s.Failed(cause) {
		t.Fatal("should have failed")
	}
	if s.FailureCause() != cause {
		t.Errorf("wrong failure cause : %v", s.FailureCause())
	}

	// terminal - no exits
	if transitioned, _ := s.Starting(); transitioned {
		t.Error("Failed is terminal")
	}
	if transitioned, _ := s.Rewind(); transitioned {
		t.Error("Failed is terminal")
	}
}

func TestServiceState_FailedWithNilCause(t *testing.T) {
	s := service.NewServiceState()
	if !s.Failed(nil) {
		t.Fatal("should have failed")
	}
	if _, ok := s.FailureCause().(service.UnknownFailureCause); !ok {
		t.Errorf("expected UnknownFailureCause : %v", s.FailureCause())
	}
}

func TestServiceState_Rewind(t *testing.T) {
	s := service.NewServiceState()
	s.Starting()

	transitioned, err := s.Rewind()
	if err != nil {
		t.Fatal(err)
	}
	if !transitioned {
		t.Fatal("should have rewound")
	}
	if state, _ := s.State(); !state.Registered() {
		t.Errorf("expected Registered : %v", state)
	}
	if s.FailureCause() != nil {
		t.Error("rewind should clear the failure cause")
	}

	// the rewound service can be driven through the lifecycle again
	if _, err := s.Starting(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Running(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Rewind(); err != nil {
		t.Fatal(err)
	}
}

func TestServiceState_StateChangeListener(t *testing.T) {
	s := service.NewServiceState()
	l := s.NewStateChangeListener()

	s.Starting()
	s.Running()
	s.Stopping()
	s.Stopped()

	var observed []service.State
	for state := range l.Channel() {
		observed = append(observed, state)
	}
	// the terminal state is delivered last, before the channel closes
	if len(observed) == 0 || observed[len(observed)-1] != service.Stopped {
		t.Fatalf("terminal state should be delivered last : %v", observed)
	}
	expected := service.States{service.Starting, service.Running, service.Stopping, service.Stopped}
	if !service.States(observed).Equals(expected) {
		t.Errorf("expected %v, got %v", expected, observed)
	}
}

func TestServiceState_ListenerOnTerminalState(t *testing.T) {
	s := service.NewServiceState()
	s.Failed(errors.New("BOOM"))

	// a listener created after the terminal state still receives it
	l := s.NewStateChangeListener()
	select {
	case state, ok := <-l.Channel():
		if !ok || !state.Failed() {
			t.Errorf("expected Failed : %v %v", state, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("terminal state was not delivered")
	}
	if _, ok := <-l.Channel(); ok {
		t.Error("channel should be closed after the terminal state")
	}
}

func TestServiceState_StalledListenerDoesNotBlockLifecycle(t *testing.T) {
	s := service.NewServiceState()
	l := s.NewStateChangeListener()

	// the listener never receives - overflow its buffer with supervised restart churn
	for i := 0; i < 10; i++ {
		if _, err := s.Starting(); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Running(); err != nil {
			t.Fatal(err)
		}
		if _, err := s.Rewind(); err != nil {
			t.Fatal(err)
		}
	}

	// the terminal transition must complete even though the listener is stalled
	failed := make(chan struct{})
	cause := errors.New("BOOM")
	go func() {
		defer close(failed)
		s.Failed(cause)
	}()
	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatal("terminal transition blocked on a stalled listener")
	}

	// the terminal state is still the last value delivered before the channel closes
	var observed []service.State
	for state := range l.Channel() {
		observed = append(observed, state)
	}
	if len(observed) == 0 || observed[len(observed)-1] != service.Failed {
		t.Fatalf("terminal state should be delivered last : %v", observed)
	}
}

func TestServiceState_ListenerCancel(t *testing.T) {
	s := service.NewServiceState()
	l := s.NewStateChangeListener()
	s.Starting()
	l.Cancel()

	// canceling drains and closes the channel
	if _, ok := <-l.Channel(); ok {
		t.Error("canceled listener channel should be closed")
	}
	// canceling again is harmless
	l.Cancel()

	// the state keeps transitioning without the listener
	if _, err := s.Running(); err != nil {
		t.Fatal(err)
	}
}
