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
	"time"

	"github.com/json-iterator/go"
	"github.com/primetype/organix/pkg/service"
)

// Status is a point-in-time snapshot of one service's runtime condition
type Status struct {
	ID      service.ID
	Version string
	State   service.State
	// when the service transitioned into its current state
	Since time.Time
	// cumulative failure count over the service's lifetime
	Restarts    int
	LastFailure error

	MailboxDepth    int
	MailboxCapacity int
}

func (s Status) String() string {
	type status struct {
		ID              service.ID
		Version         string
		State           string
		Since           time.Time
		Restarts        int
		LastFailure     string `json:",omitempty"`
		MailboxDepth    int
		MailboxCapacity int
	}
	st := &status{
		ID:              s.ID,
		Version:         s.Version,
		State:           s.State.String(),
		Since:           s.Since,
		Restarts:        s.Restarts,
		MailboxDepth:    s.MailboxDepth,
		MailboxCapacity: s.MailboxCapacity,
	}
	if s.LastFailure != nil {
		st.LastFailure = s.LastFailure.Error()
	}
	json, _ := jsoniter.Marshal(st)
	return string(json)
}

// Status returns a snapshot of the named service's runtime condition
func (s *System) Status(id service.ID) (Status, error) {
	e, err := s.entry(id)
	if err != nil {
		return Status{}, err
	}
	return s.statusOf(e), nil
}

// StatusReports returns a snapshot of every service, in start order
func (s *System) StatusReports() []Status {
	reports := make([]Status, len(s.graph.order))
	for i, idx := range s.graph.order {
		reports[i] = s.statusOf(s.entries[idx])
	}
	return reports
}

func (s *System) statusOf(e *entry) Status {
	st, since := e.state.State()

	e.mu.Lock()
	restarts := e.failures.count
	lastFailure := e.failures.lastFailure
	e.mu.Unlock()
	if cause := e.state.FailureCause(); cause != nil {
		lastFailure = cause
	}

	return Status{
		ID:              e.id(),
		Version:         e.node.desc.Version().String(),
		State:           st,
		Since:           since,
		Restarts:        restarts,
		LastFailure:     lastFailure,
		MailboxDepth:    e.mailbox.Depth(),
		MailboxCapacity: e.mailbox.Capacity(),
	}
}
