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

package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/primetype/organix/pkg/commons"
)

// ServiceState is used to manage a service's lifecycle state.
// Use NewServiceState to construct new ServiceState instances.
//
// The state is owned exclusively by the lifecycle machinery - it is mutated only by the
// coordinating logic and the service's own execution unit. Transitions are atomic with
// respect to observers, i.e., a supervisor's read never observes a half-completed transition.
type ServiceState struct {
	mutex        sync.Mutex
	state        State
	failureCause error
	timestamp    time.Time

	// registered listeners for state changes
	// once the service reaches a terminal state, the listeners are closed and cleared
	stateChangeListeners []chan State
}

// NewServiceState initializes the state to Registered and the timestamp to now
func NewServiceState() *ServiceState {
	return &ServiceState{
		state:     Registered,
		timestamp: time.Now(),
	}
}

func (s *ServiceState) String() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.failureCause != nil {
		return fmt.Sprintf("State : %v, Timestamp : %v, FailureCause : %v", s.state, s.timestamp, s.failureCause)
	}
	return fmt.Sprintf("State : %v, Timestamp : %v", s.state, s.timestamp)
}

// State returns the current State and when it transitioned to the State
func (s *ServiceState) State() (State, time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state, s.timestamp
}

// FailureCause returns the error that caused this service to fail.
// Returns nil if the service has no error.
// NOTE: if the service has a FailureCause, then the State must be Failed
func (s *ServiceState) FailureCause() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.failureCause
}

// SetState transitions to the specified State only if it is allowed, and records the timestamp.
// If the current state matches the new desired state, then false is returned.
// If an illegal state transition is attempted, then the state is not changed and an error is returned.
// If a valid state transition is requested, then the timestamp is updated and true is returned with no error.
func (s *ServiceState) SetState(state State) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.setState(state)
}

func (s *ServiceState) setState(state State) (bool, error) {
	if s.state == state {
		return false, nil
	}
	if !s.state.ValidTransition(state) {
		return false, &InvalidStateTransition{s.state, state}
	}
	s.state = state
	s.timestamp = time.Now()
	if state == Failed && s.failureCause == nil {
		s.failureCause = UnknownFailureCause{}
	}
	s.notifyStateChangeListeners(state)
	return true, nil
}

// Failed sets the service state to Failed with the specified error only if it is a valid state transition.
// If err is nil, then the failure cause is set to UnknownFailureCause.
// If the current state is already Failed, then the failure cause will be updated if err is not nil, but state
// change listeners will not be notified.
func (s *ServiceState) Failed(err error) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	setFailureCause := func() {
		if err != nil {
			s.failureCause = err
		}
		if s.failureCause == nil {
			s.failureCause = UnknownFailureCause{}
		}
	}

	if s.state == Failed {
		setFailureCause()
		return false
	}
	if !s.state.ValidTransition(Failed) {
		return false
	}
	s.state = Failed
	s.timestamp = time.Now()
	setFailureCause()
	s.notifyStateChangeListeners(Failed)
	return true
}

// Starting transitions to Starting or returns an InvalidStateTransition error if it is not a legal transition
func (s *ServiceState) Starting() (bool, error) {
	return s.SetState(Starting)
}

// Running transitions to Running or returns an InvalidStateTransition error if it is not a legal transition
func (s *ServiceState) Running() (bool, error) {
	return s.SetState(Running)
}

// Stopping transitions to Stopping or returns an InvalidStateTransition error if it is not a legal transition
func (s *ServiceState) Stopping() (bool, error) {
	return s.SetState(Stopping)
}

// Stopped transitions to Stopped or returns an InvalidStateTransition error if it is not a legal transition
func (s *ServiceState) Stopped() (bool, error) {
	return s.SetState(Stopped)
}

// Rewind transitions a failed start or run attempt back to Registered, clearing the failure cause.
// It is used exclusively by the supervisor when the restart policy permits another attempt.
func (s *ServiceState) Rewind() (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	transitioned, err := s.setState(Registered)
	if transitioned {
		s.failureCause = nil
	}
	return transitioned, err
}

// NewStateChangeListener returns a listener that can be used to monitor the service lifecycle.
// After the service has reached a terminal state, the listener channel is closed.
func (s *ServiceState) NewStateChangeListener() StateChangeListener {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	// Buffered generously because a supervised service may revisit Registered -> Starting -> Running
	// several times. Listeners that fall behind miss nothing critical - terminal states are always
	// delivered before the channel closes.
	c := make(chan State, 16)
	if s.state.Terminal() {
		c <- s.state
		close(c)
	} else {
		s.stateChangeListeners = append(s.stateChangeListeners, c)
	}
	return StateChangeListener{c, s}
}

// deleteStateChangeListener closes the listener channel and removes it from the maintained list.
// Returns false if the listener channel is not currently owned by this ServiceState.
func (s *ServiceState) deleteStateChangeListener(l chan State) bool {
	for i, v := range s.stateChangeListeners {
		if l == v {
			closeStateChanQuietly(l)
			s.stateChangeListeners[i] = s.stateChangeListeners[len(s.stateChangeListeners)-1]
			// enable the channel at the last index to be garbage collected
			s.stateChangeListeners[len(s.stateChangeListeners)-1] = nil
			s.stateChangeListeners = s.stateChangeListeners[:len(s.stateChangeListeners)-1]
			return true
		}
	}
	return false
}

func (s *ServiceState) deleteAllStateChangeListeners() {
	for _, l := range s.stateChangeListeners {
		closeStateChanQuietly(l)
	}
	s.stateChangeListeners = nil
}

// ignores the panic if the channel is already closed
func closeStateChanQuietly(c chan State) {
	defer commons.IgnorePanic()
	close(c)
}

// notifyStateChangeListeners delivers the state to every registered listener.
// A listener that is not keeping up never blocks the transition - non-terminal states are
// dropped for that listener, and a terminal state evicts the listener's oldest buffered
// state until the terminal state fits. The terminal state is therefore always the last
// value delivered before the channel closes, even to a listener that stopped receiving.
func (s *ServiceState) notifyStateChangeListeners(state State) {
	if state.Terminal() {
		for _, l := range s.stateChangeListeners {
			func(l chan State) {
				// ignore panics caused by sending on a closed channel
				defer commons.IgnorePanic()
				for {
					select {
					case l <- state:
						return
					default:
					}
					select {
					case <-l:
					default:
					}
				}
			}(l)
		}
		s.deleteAllStateChangeListeners()
		return
	}
	for _, l := range s.stateChangeListeners {
		func(l chan State) {
			defer commons.IgnorePanic()
			select {
			case l <- state:
			default:
			}
		}(l)
	}
}

// StateChangeListener contains a channel used to listen for service state changes.
// After a terminal state is reached, the channel is closed.
// NOTE: a StateChangeListener must be created using ServiceState.NewStateChangeListener()
type StateChangeListener struct {
	c chan State
	// owns the listener channel
	s *ServiceState
}

// Channel returns the channel that the listener should listen on
func (a *StateChangeListener) Channel() <-chan State {
	return a.c
}

// Cancel deletes itself from the ServiceState that created it, which will also close the channel.
// Any buffered states on the channel are drained.
func (a *StateChangeListener) Cancel() {
	func() {
		a.s.mutex.Lock()
		defer a.s.mutex.Unlock()
		if !a.s.deleteStateChangeListener(a.c) {
			// the ServiceState no longer owns the channel - close it in case a goroutine is still
			// blocked receiving from it
			closeStateChanQuietly(a.c)
		}
	}()
	// drain the channel
	for range a.c {
	}
}
