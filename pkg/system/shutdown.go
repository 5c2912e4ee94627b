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
	"sync"
	"time"

	"github.com/json-iterator/go"
	"github.com/primetype/organix/pkg/service"
	"golang.org/x/sync/errgroup"
	"gopkg.in/tomb.v2"
)

// ShutdownReport summarizes a completed system shutdown
type ShutdownReport struct {
	// nil for a clean, operator requested shutdown
	Reason error
	// services that stopped cleanly
	Stopped []service.ID
	// services that ended Failed
	Failed []service.ID
	// services whose execution unit had to be forcibly terminated on stop timeout
	Forced []service.ID

	Duration time.Duration
}

func (r *ShutdownReport) String() string {
	type report struct {
		Reason   string `json:",omitempty"`
		Stopped  []service.ID
		Failed   []service.ID
		Forced   []service.ID
		Duration string
	}
	rep := &report{
		Stopped:  r.Stopped,
		Failed:   r.Failed,
		Forced:   r.Forced,
		Duration: r.Duration.String(),
	}
	if r.Reason != nil {
		rep.Reason = r.Reason.Error()
	}
	json, _ := jsoniter.Marshal(rep)
	return string(json)
}

type stopOutcome int

const (
	outcomeStopped stopOutcome = iota
	outcomeFailed
	outcomeForced
)

// executeShutdown stops every service in reverse dependency order : a level's
// services stop concurrently, and a level is not signaled until every level above it
// (the dependents) has fully resolved.
func (s *System) executeShutdown() *ShutdownReport {
	started := time.Now()
	report := &ShutdownReport{Reason: s.shutdownCause()}
	var mu sync.Mutex

	for li := len(s.graph.levels) - 1; li >= 0; li-- {
		var g errgroup.Group
		for _, i := range s.graph.levels[li] {
			e := s.entries[i]
			g.Go(func() error {
				outcome := s.stopEntry(e)
				mu.Lock()
				switch outcome {
				case outcomeStopped:
					report.Stopped = append(report.Stopped, e.id())
				case outcomeFailed:
					report.Failed = append(report.Failed, e.id())
				case outcomeForced:
					report.Forced = append(report.Forced, e.id())
				}
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
	}

	report.Duration = time.Since(started)
	LOG_EVENT_SHUTDOWN_COMPLETED.Log(logger.Info()).Str("report", report.String()).Msg("")
	return report
}

// stopEntry resolves one service to a terminal state during shutdown.
// The mailbox is closed regardless of the outcome, releasing blocked senders.
// The loop covers an execution unit that races in just as the shutdown triggers -
// every return path re-checks for a live unit, so none is left behind. Once the
// state is terminal and its unit is dead, a fresh unit cannot pass Starting.
func (s *System) stopEntry(e *entry) stopOutcome {
	defer e.mailbox.Close()

	for {
		r := e.currentRunner()
		if st, _ := e.state.State(); st.Terminal() && (r == nil || runnerDead(r)) {
			return terminalOutcome(e, st)
		}

		if r == nil {
			// never started
			s.setState(e, service.Stopped)
			if e.currentRunner() == nil {
				return outcomeStopped
			}
			// the supervisor started an execution unit between the runner check and
			// the terminal transition - loop to kill it and await its death
			continue
		}

		// a no-op if the runner is already dying or dead
		r.Kill(nil)
		select {
		case <-r.Dead():
		case <-time.After(e.node.desc.StopTimeout() + stopGracePeriod):
			stopErr := &service.StopTimeoutError{ID: e.id(), Timeout: e.node.desc.StopTimeout()}
			s.fail(e, stopErr)
			s.emit(e, ForcedStop, service.Failed, stopErr)
			return outcomeForced
		}

		if e.currentRunner() != r {
			// the supervisor started a fresh execution unit before observing shutdown
			continue
		}

		st, _ := e.state.State()
		if st.Terminal() {
			return terminalOutcome(e, st)
		}
		if st.Registered() {
			// awaiting a supervised restart that will never happen
			s.setState(e, service.Stopped)
			return outcomeStopped
		}
		// the execution unit died without resolving a terminal state : a failure raced
		// with shutdown
		if err := r.Err(); err != nil && err != tomb.ErrStillAlive {
			s.fail(e, err)
			return outcomeFailed
		}
		if s.setState(e, service.Stopped) {
			return outcomeStopped
		}
		s.fail(e, nil)
		return outcomeFailed
	}
}

func runnerDead(r *runner) bool {
	select {
	case <-r.Dead():
		return true
	default:
		return false
	}
}

func terminalOutcome(e *entry, st service.State) stopOutcome {
	if st.Stopped() {
		return outcomeStopped
	}
	if _, forced := e.state.FailureCause().(*service.StopTimeoutError); forced {
		return outcomeForced
	}
	return outcomeFailed
}
