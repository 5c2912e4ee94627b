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
	"context"
	"sync"
	"time"

	"github.com/primetype/organix/pkg/logging"
	"github.com/primetype/organix/pkg/msg"
	"github.com/primetype/organix/pkg/service"
	"golang.org/x/sync/errgroup"
)

// System owns the lifecycle of every registered service : it starts services in
// dependency order, supervises them per their restart policy, and shuts them down
// in reverse dependency order. Systems are created by Registry.Build.
type System struct {
	graph   *graph
	entries []*entry

	sink EventSink

	mu             sync.Mutex
	started        bool
	shutdownReason error

	shutdownOnce sync.Once
	stopTrigger  chan struct{}

	report *ShutdownReport

	done chan struct{}
}

// Option configures a System at build time
type Option func(*System)

// WithEventSink registers a callback invoked for every lifecycle and supervision event.
// The sink is invoked synchronously from runtime goroutines and must not block.
func WithEventSink(sink EventSink) Option {
	return func(s *System) { s.sink = sink }
}

// entry is the runtime record of one registered service : its lifecycle state, its
// persistent mailbox, and the currently executing unit.
//
// The mailbox outlives execution units - Address handles stay valid across supervised
// restarts, and envelopes sent during a restart queue up to the mailbox capacity.
type entry struct {
	node    *node
	state   *service.ServiceState
	mailbox *msg.Mailbox
	address *msg.Address

	mu       sync.Mutex
	runner   *runner
	failures failures
}

func (e *entry) id() service.ID { return e.node.id() }

func (e *entry) currentRunner() *runner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runner
}

func (e *entry) restarts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures.count
}

func newSystem(g *graph, opts ...Option) (*System, error) {
	s := &System{
		graph:       g,
		entries:     make([]*entry, len(g.nodes)),
		stopTrigger: make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, n := range g.nodes {
		mailbox, err := msg.NewMailbox(n.id().String(), n.desc.MailboxCapacity())
		if err != nil {
			return nil, err
		}
		s.entries[i] = &entry{
			node:    n,
			state:   service.NewServiceState(),
			mailbox: mailbox,
			address: mailbox.Address(),
		}
	}
	return s, nil
}

// Run starts every service in dependency order and blocks until the system has shut
// down. Within a dependency level services start concurrently; a level is not left
// until each of its services is Running or has permanently failed.
//
// Run returns once shutdown completes. Shutdown is triggered by ctx cancellation, an
// explicit Shutdown call, or the permanent failure of a critical service. Only the
// critical failure is surfaced as a fatal error - everything else is reported via the
// ShutdownReport.
//
// Run may only be invoked once.
func (s *System) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()
	defer close(s.done)

	for _, level := range s.graph.levels {
		if s.isStopping() {
			break
		}
		var g errgroup.Group
		for _, i := range level {
			e := s.entries[i]
			g.Go(func() error {
				return s.launch(e)
			})
		}
		if err := g.Wait(); err != nil {
			LOG_EVENT_SERVICE_FAILURE.Log(logger.Warn()).Err(err).Msg("service failed during startup")
		}
	}

	if !s.isStopping() {
		LOG_EVENT_RUNNING.Log(logger.Info()).Msg("all services launched")
	}

	select {
	case <-ctx.Done():
		s.initiateShutdown(ctx.Err())
	case <-s.stopTrigger:
	}

	report := s.executeShutdown()
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	if critical, ok := s.shutdownCause().(*CriticalServiceFailedError); ok {
		return critical
	}
	return nil
}

// launch spawns the service's supervision loop and waits until the service is Running,
// has permanently failed, or the system started shutting down.
func (s *System) launch(e *entry) error {
	go s.supervise(e)

	l := e.state.NewStateChangeListener()
	defer l.Cancel()
	for {
		if st, _ := e.state.State(); st.Running() {
			return nil
		} else if st.Terminal() {
			return e.state.FailureCause()
		}
		select {
		case _, ok := <-l.Channel():
			if !ok {
				return e.state.FailureCause()
			}
		case <-s.stopTrigger:
			return nil
		}
	}
}

// Shutdown signals the system to shut down. reason is recorded in the ShutdownReport;
// nil means a clean, operator requested shutdown.
// Shutdown returns immediately - use Done or the Run result to await completion.
func (s *System) Shutdown(reason error) {
	s.initiateShutdown(reason)
}

func (s *System) initiateShutdown(reason error) {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.shutdownReason = reason
		s.mu.Unlock()
		LOG_EVENT_SHUTDOWN.Log(logger.Info()).Err(reason).Msg("shutdown triggered")
		close(s.stopTrigger)
	})
}

func (s *System) isStopping() bool {
	select {
	case <-s.stopTrigger:
		return true
	default:
		return false
	}
}

func (s *System) shutdownCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownReason
}

// Done returns a channel that is closed once Run has returned
func (s *System) Done() <-chan struct{} { return s.done }

// ShutdownReport returns the report of the completed shutdown, or nil if the system
// has not shut down yet.
func (s *System) ShutdownReport() *ShutdownReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// StartOrder returns the deterministic topological start order of the registered
// services. Ties are broken by registration order.
func (s *System) StartOrder() []service.ID {
	ids := make([]service.ID, len(s.graph.order))
	for i, idx := range s.graph.order {
		ids[i] = s.graph.nodes[idx].id()
	}
	return ids
}

// AddressOf returns the Address of the named service's mailbox.
// The Address stays valid across supervised restarts of the service.
func (s *System) AddressOf(id service.ID) (*msg.Address, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return e.address, nil
}

// State returns the current lifecycle state of the named service
func (s *System) State(id service.ID) (service.State, error) {
	e, err := s.entry(id)
	if err != nil {
		return service.Registered, err
	}
	st, _ := e.state.State()
	return st, nil
}

// AwaitRunning blocks until the named service is Running.
// If the service reaches a terminal state instead, the failure cause (or a
// PastStateError for a clean stop) is returned. A timeout of 0 means wait forever.
func (s *System) AwaitRunning(id service.ID, timeout time.Duration) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	return awaitState(e.state, service.Running, func(st service.State) bool { return st.Running() }, timeout)
}

// AwaitTerminal blocks until the named service is Stopped or Failed.
// A timeout of 0 means wait forever.
func (s *System) AwaitTerminal(id service.ID, timeout time.Duration) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	return awaitState(e.state, service.Stopped, func(st service.State) bool { return st.Terminal() }, timeout)
}

func (s *System) entry(id service.ID) (*entry, error) {
	for _, e := range s.entries {
		if e.id() == id {
			return e, nil
		}
	}
	return nil, &ServiceNotFoundError{ID: id}
}

// lookupFor returns the dependency-scoped address lookup handed to the service's
// Context. Lookups are restricted to the service's declared dependencies.
func (s *System) lookupFor(n *node) func(service.ID) (*msg.Address, error) {
	return func(id service.ID) (*msg.Address, error) {
		for _, di := range n.deps {
			if s.entries[di].id() == id {
				return s.entries[di].address, nil
			}
		}
		return nil, &NotADependencyError{ID: n.id(), Target: id}
	}
}

// setState transitions the entry's lifecycle state and emits the state change.
// Invalid transitions are logged and swallowed - they indicate a race with shutdown,
// which owns the terminal transition.
func (s *System) setState(e *entry, st service.State) bool {
	transitioned, err := e.state.SetState(st)
	if err != nil {
		logger.Warn().Err(err).Str(logging.SERVICE, e.id().String()).Msg("state transition rejected")
		return false
	}
	if transitioned {
		s.emit(e, StateChanged, st, nil)
	}
	return transitioned
}

// fail transitions the entry to Failed with the specified cause and emits the state change
func (s *System) fail(e *entry, cause error) bool {
	if e.state.Failed(cause) {
		s.emit(e, StateChanged, service.Failed, cause)
		return true
	}
	return false
}

// rewind transitions a failed attempt back to Registered ahead of a supervised restart
func (s *System) rewind(e *entry) bool {
	transitioned, err := e.state.Rewind()
	if err != nil {
		logger.Warn().Err(err).Str(logging.SERVICE, e.id().String()).Msg("rewind rejected")
		return false
	}
	if transitioned {
		s.emit(e, StateChanged, service.Registered, nil)
	}
	return transitioned
}

// awaitState blocks until the state matches, the service reaches a terminal state, or
// the timeout expires. desired names the awaited state for error reporting.
// timeout = 0 means wait forever.
func awaitState(ss *service.ServiceState, desired service.State, match func(service.State) bool, timeout time.Duration) error {
	l := ss.NewStateChangeListener()
	defer l.Cancel()

	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, l.Cancel)
		defer timer.Stop()
	}

	check := func() (done bool, err error) {
		st, _ := ss.State()
		if match(st) {
			return true, nil
		}
		if st.Terminal() {
			if cause := ss.FailureCause(); cause != nil {
				return true, cause
			}
			// the service stopped cleanly without ever matching - the desired state
			// is in the past
			return true, &service.PastStateError{Past: desired, Current: st}
		}
		return false, nil
	}

	for {
		if done, err := check(); done {
			return err
		}
		if _, ok := <-l.Channel(); !ok {
			// channel closed : terminal state reached or the timeout canceled the listener
			if done, err := check(); done {
				return err
			}
			st, _ := ss.State()
			return &service.IllegalStateError{State: st, Message: "timed out waiting for state"}
		}
	}
}
