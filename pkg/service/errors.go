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
	"time"
)

// InvalidStateTransition indicates an invalid transition was attempted
type InvalidStateTransition struct {
	From State
	To   State
}

func (e *InvalidStateTransition) Error() string {
	return fmt.Sprintf("InvalidStateTransition: %v -> %v", e.From, e.To)
}

// IllegalStateError indicates an operation was attempted in an illegal state
type IllegalStateError struct {
	State
	Message string
}

func (e *IllegalStateError) Error() string {
	if e.Message == "" {
		return e.State.String()
	}
	return fmt.Sprintf("%v : %v", e.State, e.Message)
}

// UnknownFailureCause indicates that the service is in a Failed state, but the failure cause is unknown
type UnknownFailureCause struct{}

func (e UnknownFailureCause) Error() string {
	return "UnknownFailureCause"
}

// PastStateError indicates that the service is currently in a state that is past the desired state
type PastStateError struct {
	Past    State
	Current State
}

func (e *PastStateError) Error() string {
	return fmt.Sprintf("Current state (%v) is past state (%v)", e.Current, e.Past)
}

// PanicError wraps a trapped panic along with supplemental info about the context of the panic
type PanicError struct {
	Panic interface{}
	// additional info
	Message string
}

func (e *PanicError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("panic: %v : %v", e.Panic, e.Message)
	}
	return fmt.Sprintf("panic: %v", e.Panic)
}

// InitError indicates OnStart returned an error
type InitError struct {
	ID
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("Service failed to initialize : %s : %v", e.ID, e.Err)
}

// StartTimeoutError indicates OnStart did not return Ready within the start timeout
type StartTimeoutError struct {
	ID
	Timeout time.Duration
}

func (e *StartTimeoutError) Error() string {
	return fmt.Sprintf("Service did not start within %v : %s", e.Timeout, e.ID)
}

// StopTimeoutError indicates OnStop did not acknowledge within the stop timeout.
// The execution unit was forcibly terminated.
type StopTimeoutError struct {
	ID
	Timeout time.Duration
}

func (e *StopTimeoutError) Error() string {
	return fmt.Sprintf("Service did not stop within %v : %s", e.Timeout, e.ID)
}

// DependencyFailedError indicates the service cannot run because one of its dependencies
// failed permanently
type DependencyFailedError struct {
	ID
	Dependency ID
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("Service dependency failed : %s -> %s", e.ID, e.Dependency)
}

// MessageError indicates OnMessage returned a failure while handling an envelope
type MessageError struct {
	ID
	EnvelopeID string
	Err        error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("Service failed handling message : %s : envelope = %s : %v", e.ID, e.EnvelopeID, e.Err)
}
