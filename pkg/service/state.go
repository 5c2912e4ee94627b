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
	"sort"
)

// State is an enum representing the service lifecycle state
type State int

// State enum values
// Normal service life cycle : Registered -> Starting -> Running -> Stopping -> Stopped
// If the service fails permanently while starting, running, or stopping, then it goes into state Failed.
// A supervised restart rewinds Starting / Running back to Registered - Failed is reserved for permanent
// failure, so that the terminal states (Stopped, Failed) have no outgoing transitions.
// The ordering of the State enum is defined such that for the normal life cycle A -> B implies A < B.
const (
	// A service in this state is registered but not yet started, or is awaiting a supervised restart.
	Registered State = iota
	// A service in this state is transitioning to Running, i.e., its OnStart is executing.
	Starting
	// A service in this state is operational and processing its mailbox.
	Running
	// A service in this state is transitioning to Stopped, i.e., its OnStop is executing.
	Stopping
	// A service in this state has completed execution normally. Terminal.
	Stopped
	// A service in this state has failed permanently. Terminal.
	Failed
)

// Registered returns true if the State is Registered
func (s State) Registered() bool { return s == Registered }

// Starting returns true if the State is Starting
func (s State) Starting() bool { return s == Starting }

// Running returns true if the State is Running
func (s State) Running() bool { return s == Running }

// Stopping returns true if the State is Stopping
func (s State) Stopping() bool { return s == Stopping }

// Stopped returns true if the State is Stopped
func (s State) Stopped() bool { return s == Stopped }

// Failed returns true if the State is Failed
func (s State) Failed() bool { return s == Failed }

// Terminal returns true if the service is Stopped or Failed
func (s State) Terminal() bool {
	return s == Stopped || s == Failed
}

// ValidTransitions returns the permitted State(s) that the current State is able to transition to
func (s State) ValidTransitions() (states States) {
	switch s {
	case Registered:
		// Registered -> Stopped covers a shutdown that arrives before the service was ever started
		states = []State{Starting, Stopped, Failed}
	case Starting:
		// Starting -> Registered is the supervisor rewind for a retryable start failure
		states = []State{Running, Registered, Stopping, Stopped, Failed}
	case Running:
		states = []State{Stopping, Registered, Failed}
	case Stopping:
		states = []State{Stopped, Failed}
	case Stopped:
	case Failed:
	default:
		panic(fmt.Sprintf("Unknown State : %v", s))
	}
	return
}

// ValidTransition returns true if the state transition is permitted
func (s State) ValidTransition(to State) bool {
	for _, validState := range s.ValidTransitions() {
		if validState == to {
			return true
		}
	}
	return false
}

func (s State) String() string {
	switch s {
	case Registered:
		return "Registered"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Failed:
		return "Failed"
	default:
		panic(fmt.Sprintf("UNKNOWN STATE : %d", s))
	}
}

// States implements sort.Interface.
// When sorted, states will be sorted by the state int value in increasing order, which represents the service lifecycle order.
type States []State

func (a States) Len() int           { return len(a) }
func (a States) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a States) Less(i, j int) bool { return a[i] < a[j] }

// AllStates contains all possible states in sorted order, i.e., from Registered to Failed
var AllStates States = []State{Registered, Starting, Running, Stopping, Stopped, Failed}

// Equals returns true if the two State slices contain the same set of State(s) regardless of order
func (a States) Equals(b States) bool {
	if a == nil && b == nil {
		return true
	}

	if len(a) != len(b) {
		return false
	}

	sort.Sort(a)
	sort.Sort(b)

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
