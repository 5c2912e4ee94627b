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

	"github.com/cenkalti/backoff/v4"
	"github.com/primetype/organix/pkg/logging"
	"github.com/primetype/organix/pkg/service"
)

// stopGracePeriod pads the stop timeout when awaiting an execution unit's death.
// The runner resolves within the stop timeout by construction - the grace period only
// covers goroutine scheduling.
const stopGracePeriod = 5 * time.Second

// failures tracks service failure history for supervision decisions
type failures struct {
	count           int
	lastFailure     error
	lastFailureTime time.Time
}

func (f *failures) failure(cause error) {
	f.count++
	f.lastFailure = cause
	f.lastFailureTime = time.Now()
}

// supervise owns the entry's execution units for the system's lifetime : it starts the
// service, watches each execution unit until it dies, and applies the restart policy.
//
// Restart counting is cumulative - the restart policy bounds the total number of
// failures over the service's lifetime. The backoff schedule, however, is reset
// whenever an attempt reaches Running, so a service that fails after running healthy
// restarts promptly.
func (s *System) supervise(e *entry) {
	policy := e.node.desc.RestartPolicy()
	schedule := policy.NewBackOff()

	for {
		if err := s.awaitDependencies(e); err != nil {
			if err == errSystemStopping {
				return
			}
			s.emit(e, DependencyFailed, currentState(e), err)
			s.failPermanently(e, err)
			return
		}
		if s.isStopping() {
			return
		}

		r := s.startRunner(e)
		select {
		case <-r.Dead():
		case <-s.stopTrigger:
			// the shutdown coordinator takes over the execution unit
			return
		}

		err := r.Err()
		if st, _ := e.state.State(); st.Terminal() {
			// clean stop, or a terminal failure the execution unit resolved itself
			e.mailbox.Close()
			if st.Failed() {
				s.escalate(e)
			}
			return
		}
		if err == nil {
			// the execution unit exited before reaching a terminal state (lost race
			// with shutdown) - resolve to Stopped
			if !s.setState(e, service.Stopped) {
				s.fail(e, nil)
			}
			e.mailbox.Close()
			return
		}

		e.mu.Lock()
		e.failures.failure(err)
		count := e.failures.count
		e.mu.Unlock()
		LOG_EVENT_SERVICE_FAILURE.Log(logger.Warn()).
			Err(err).
			Str(logging.SERVICE, e.id().String()).
			Int("failures", count).
			Msg("")

		if !policy.Permits(count) {
			cause := err
			if _, bounded := policy.MaxRetries(); bounded {
				cause = &MaxRetriesExceededError{ID: e.id(), Attempts: count, Err: err}
				s.emit(e, MaxRetriesExceeded, currentState(e), cause)
			}
			s.failPermanently(e, cause)
			return
		}

		if r.reachedRunning {
			schedule.Reset()
		}
		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			s.failPermanently(e, err)
			return
		}

		if !s.rewind(e) {
			// a terminal transition raced in
			e.mailbox.Close()
			if currentState(e).Failed() {
				s.escalate(e)
			}
			return
		}
		s.emit(e, Restarting, service.Registered, err)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.stopTrigger:
			timer.Stop()
			return
		}
	}
}

// awaitDependencies blocks until every declared dependency is Running.
// Returns a DependencyFailedError if a dependency reached a terminal state instead,
// or errSystemStopping if shutdown was triggered while waiting.
func (s *System) awaitDependencies(e *entry) error {
	for _, di := range e.node.deps {
		d := s.entries[di]
		if st, _ := d.state.State(); st.Running() {
			continue
		}

		s.emit(e, RestartDeferred, currentState(e), nil)
		l := d.state.NewStateChangeListener()
		err := func() error {
			for {
				st, _ := d.state.State()
				if st.Running() {
					return nil
				}
				if st.Terminal() {
					return &service.DependencyFailedError{ID: e.id(), Dependency: d.id()}
				}
				select {
				case _, ok := <-l.Channel():
					if !ok {
						// listener closed on a terminal state
						if st, _ := d.state.State(); !st.Running() {
							return &service.DependencyFailedError{ID: e.id(), Dependency: d.id()}
						}
						return nil
					}
				case <-s.stopTrigger:
					return errSystemStopping
				}
			}
		}()
		l.Cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// failPermanently marks the entry Failed with the specified cause and handles the
// consequences : mailbox closed to senders, critical escalation, dependent cascade.
func (s *System) failPermanently(e *entry, cause error) {
	s.fail(e, cause)
	e.mailbox.Close()
	s.escalate(e)
}

// escalate handles the consequences of an entry's permanent failure : a critical
// service triggers a system-wide shutdown, and every transitive dependent is torn
// down. Safe to invoke more than once for the same entry.
func (s *System) escalate(e *entry) {
	if s.isStopping() {
		// shutdown is already tearing everything down
		return
	}
	cause := e.state.FailureCause()
	if e.node.desc.Critical() {
		s.emit(e, CriticalFailure, service.Failed, cause)
		// the shutdown coordinator tears down the dependents along with everything else
		s.initiateShutdown(&CriticalServiceFailedError{ID: e.id(), Err: cause})
		return
	}
	s.cascadeFailure(e)
}

// cascadeFailure tears down every service that transitively depends on the failed
// entry. Dependents are processed deepest-first so that a service is torn down before
// the services it depends on.
func (s *System) cascadeFailure(root *entry) {
	for _, di := range s.graph.transitiveDependents(root.node.index) {
		d := s.entries[di]
		if st, _ := d.state.State(); st.Terminal() {
			continue
		}
		depErr := &service.DependencyFailedError{ID: d.id(), Dependency: root.id()}
		s.emit(d, DependencyFailed, currentState(d), depErr)

		r := d.currentRunner()
		if r != nil && r.Alive() {
			r.Kill(depErr)
			select {
			case <-r.Dead():
				// the dependent's supervisor observes the terminal state, closes its
				// mailbox, and escalates
			case <-time.After(d.node.desc.StopTimeout() + stopGracePeriod):
				s.fail(d, depErr)
				d.mailbox.Close()
				s.escalate(d)
			}
			continue
		}

		// not currently executing : pending start, mid-backoff, or never started
		s.fail(d, depErr)
		d.mailbox.Close()
		s.escalate(d)
	}
}

func currentState(e *entry) service.State {
	st, _ := e.state.State()
	return st
}
