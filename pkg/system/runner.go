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
	"gopkg.in/tomb.v2"
)

// runner is one execution unit : the single goroutine that drives a service through
// OnStart, its message loop, and OnStop. A supervised restart creates a fresh runner -
// the runner never outlives one start attempt.
//
// All lifecycle operations run bounded : OnStart and OnStop execute in a child
// goroutine and are raced against the descriptor's timeouts, so the runner itself
// always terminates promptly once killed. On timeout the child goroutine is abandoned.
type runner struct {
	tomb.Tomb

	sys *System
	e   *entry
	ctx *service.Context

	// set by the runner goroutine before it dies; read by the supervisor after Dead
	reachedRunning bool
}

// startRunner creates a fresh execution unit for the entry and starts it.
// The entry's state must be Registered.
func (s *System) startRunner(e *entry) *runner {
	r := &runner{sys: s, e: e}
	r.ctx = service.NewContext(
		e.node.desc,
		logging.NewServiceLogger(pkgobject{}, e.id().String()),
		s.lookupFor(e.node),
		r.quit,
		r.Dying(),
	)

	e.mu.Lock()
	e.runner = r
	e.mu.Unlock()

	r.Go(r.run)
	return r
}

// quit backs Context.Quit. A nil err stops the service normally.
func (r *runner) quit(err error) {
	r.Kill(err)
}

// killReason returns the reason the runner was killed, or nil for a clean stop
func (r *runner) killReason() error {
	err := r.Tomb.Err()
	if err == tomb.ErrStillAlive {
		return nil
	}
	return err
}

// run drives the service lifecycle. A non-nil return is a failure that is handed to
// the supervisor; a nil return means the service stopped and the runner set the
// terminal state itself.
func (r *runner) run() error {
	e := r.e
	desc := e.node.desc

	if !r.sys.setState(e, service.Starting) {
		// lost the race with shutdown
		return nil
	}

	startResult := make(chan error, 1)
	go func() {
		startResult <- r.invoke("OnStart()", func() error {
			return e.node.handler.OnStart(r.ctx)
		})
	}()

	startTimer := time.NewTimer(desc.StartTimeout())
	defer startTimer.Stop()
	select {
	case err := <-startResult:
		if err != nil {
			return &service.InitError{ID: desc.ID(), Err: err}
		}
	case <-startTimer.C:
		return &service.StartTimeoutError{ID: desc.ID(), Timeout: desc.StartTimeout()}
	case <-r.Dying():
		// stop signaled while starting - wait for OnStart to settle, then clean up
		select {
		case err := <-startResult:
			if err != nil {
				return &service.InitError{ID: desc.ID(), Err: err}
			}
		case <-startTimer.C:
			return &service.StartTimeoutError{ID: desc.ID(), Timeout: desc.StartTimeout()}
		}
		return r.stop(r.killReason())
	}

	r.reachedRunning = true
	r.sys.setState(e, service.Running)

	for {
		select {
		case <-r.Dying():
			return r.stop(r.killReason())
		case <-e.mailbox.Closed():
			// the mailbox only closes once the service is being torn down - a unit
			// that was never killed (it raced past the shutdown coordinator or a
			// forced stop) terminates itself here instead of idling forever
			return r.stop(r.killReason())
		case envelope := <-e.mailbox.C():
			err := r.invoke("OnMessage()", func() error {
				return e.node.handler.OnMessage(r.ctx, envelope)
			})
			envelope.Release()
			if err != nil {
				return &service.MessageError{ID: desc.ID(), EnvelopeID: envelope.Id(), Err: err}
			}
		}
	}
}

// stop runs OnStop bounded by the stop timeout and sets the terminal state.
// reason is nil for a coordinated stop. A non-nil reason means the service is being
// torn down - the terminal state is Failed with that reason.
func (r *runner) stop(reason error) error {
	e := r.e
	desc := e.node.desc

	r.sys.setState(e, service.Stopping)

	stopResult := make(chan error, 1)
	go func() {
		stopResult <- r.invoke("OnStop()", func() error {
			return e.node.handler.OnStop(r.ctx, reason)
		})
	}()

	stopTimer := time.NewTimer(desc.StopTimeout())
	defer stopTimer.Stop()
	select {
	case err := <-stopResult:
		if err != nil {
			logger.Warn().Err(err).Str(logging.SERVICE, e.id().String()).Msg("OnStop returned an error")
		}
	case <-stopTimer.C:
		// the OnStop goroutine is abandoned
		stopErr := &service.StopTimeoutError{ID: desc.ID(), Timeout: desc.StopTimeout()}
		r.sys.fail(e, stopErr)
		r.sys.emit(e, ForcedStop, service.Failed, stopErr)
		return stopErr
	}

	if reason != nil {
		r.sys.fail(e, reason)
		return reason
	}
	r.sys.setState(e, service.Stopped)
	return nil
}

// invoke runs the handler operation, converting a panic into a PanicError.
// A panicking service is a failing service, not a crashing system.
func (r *runner) invoke(op string, f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &service.PanicError{Panic: p, Message: op}
		}
	}()
	return f()
}
