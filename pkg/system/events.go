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

	"github.com/primetype/organix/pkg/logging"
	"github.com/primetype/organix/pkg/service"
	"github.com/rs/zerolog"
)

// EventType classifies lifecycle and supervision events
type EventType int

// EventType enum values
const (
	// StateChanged is emitted on every lifecycle state transition
	StateChanged EventType = iota
	// Restarting is emitted when the supervisor schedules a restart attempt
	Restarting
	// RestartDeferred is emitted when a restart waits on a dependency that is not Running
	RestartDeferred
	// MaxRetriesExceeded is emitted when a restart policy is exhausted
	MaxRetriesExceeded
	// DependencyFailed is emitted when a service fails because a dependency failed permanently
	DependencyFailed
	// CriticalFailure is emitted when a critical service fails permanently
	CriticalFailure
	// ForcedStop is emitted when an execution unit is forcibly terminated on stop timeout
	ForcedStop
)

func (t EventType) String() string {
	switch t {
	case StateChanged:
		return "StateChanged"
	case Restarting:
		return "Restarting"
	case RestartDeferred:
		return "RestartDeferred"
	case MaxRetriesExceeded:
		return "MaxRetriesExceeded"
	case DependencyFailed:
		return "DependencyFailed"
	case CriticalFailure:
		return "CriticalFailure"
	case ForcedStop:
		return "ForcedStop"
	default:
		return "Unknown"
	}
}

func (t EventType) logEvent() logging.Event {
	switch t {
	case StateChanged:
		return LOG_EVENT_STATE_CHANGED
	case Restarting:
		return LOG_EVENT_RESTARTING
	case RestartDeferred:
		return LOG_EVENT_RESTART_DEFERRED
	case MaxRetriesExceeded:
		return LOG_EVENT_MAX_RETRIES
	case DependencyFailed:
		return LOG_EVENT_DEPENDENCY_FAILED
	case CriticalFailure:
		return LOG_EVENT_CRITICAL_FAILURE
	case ForcedStop:
		return LOG_EVENT_FORCED_STOP
	default:
		return LOG_EVENT_STATE_CHANGED
	}
}

// Event is a structured lifecycle or supervision event
type Event struct {
	Time    time.Time
	Type    EventType
	Service service.ID
	// the service's lifecycle state when the event was emitted
	State service.State
	// the associated failure, if any
	Err error
	// cumulative restart count for the service
	Restarts int
}

// EventSink receives lifecycle and supervision events.
// Sinks are invoked synchronously from runtime goroutines and must not block.
type EventSink func(Event)

// emit logs the event, updates the metrics, and hands the event to the sink if one is
// registered. It is the single funnel for all per-service lifecycle observability.
func (s *System) emit(e *entry, t EventType, st service.State, cause error) {
	evt := Event{
		Time:     time.Now(),
		Type:     t,
		Service:  e.id(),
		State:    st,
		Err:      cause,
		Restarts: e.restarts(),
	}

	var logEvt *zerolog.Event
	if cause != nil {
		logEvt = logger.Warn().Err(cause)
	} else {
		logEvt = logger.Info()
	}
	t.logEvent().Log(logEvt).
		Str(logging.SERVICE, evt.Service.String()).
		Str(logging.STATE, st.String()).
		Msg("")

	switch t {
	case StateChanged:
		stateTransitionCounter.WithLabelValues(evt.Service.String(), st.String()).Inc()
	case Restarting:
		restartCounter.WithLabelValues(evt.Service.String()).Inc()
	case ForcedStop:
		forcedStopCounter.WithLabelValues(evt.Service.String()).Inc()
	}
	mailboxDepthGauge.WithLabelValues(evt.Service.String()).Set(float64(e.mailbox.Depth()))

	if s.sink != nil {
		s.sink(evt)
	}
}
