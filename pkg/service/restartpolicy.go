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

	"github.com/cenkalti/backoff/v4"
)

type restartPolicyKind int

const (
	restartNever restartPolicyKind = iota
	restartFixedRetries
	restartAlways
)

// RestartPolicy defines how the supervisor reacts to a service failure.
//
// The backoff interval grows exponentially (x2 per consecutive failure, starting at the
// configured initial interval) and is reset once the service starts successfully.
type RestartPolicy struct {
	kind       restartPolicyKind
	maxRetries int
	initial    time.Duration
}

// Never returns a policy that never restarts a failed service
func Never() RestartPolicy {
	return RestartPolicy{kind: restartNever}
}

// FixedRetries returns a policy that restarts a failed service up to n times.
// A service that fails on every attempt is attempted exactly n+1 times before it
// permanently fails.
func FixedRetries(n int, initial time.Duration) RestartPolicy {
	if n < 0 {
		logger.Panic().Msgf("FixedRetries n must be >= 0 : %d", n)
	}
	return RestartPolicy{kind: restartFixedRetries, maxRetries: n, initial: initial}
}

// Always returns a policy that restarts a failed service indefinitely
func Always(initial time.Duration) RestartPolicy {
	return RestartPolicy{kind: restartAlways, initial: initial}
}

// Permits returns true if the policy allows another attempt after the specified number
// of failures.
func (p RestartPolicy) Permits(failures int) bool {
	switch p.kind {
	case restartAlways:
		return true
	case restartFixedRetries:
		return failures <= p.maxRetries
	default:
		return false
	}
}

// MaxRetries returns the retry limit. ok is false if the policy is unbounded or never retries.
func (p RestartPolicy) MaxRetries() (n int, ok bool) {
	if p.kind == restartFixedRetries {
		return p.maxRetries, true
	}
	return 0, false
}

// NewBackOff returns a fresh backoff schedule for a restart sequence.
// The schedule is deterministic (no randomization) : initial, 2*initial, 4*initial, ...
func (p RestartPolicy) NewBackOff() backoff.BackOff {
	if p.kind == restartNever {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initial
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	// the policy bounds attempts via Permits, not elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (p RestartPolicy) String() string {
	switch p.kind {
	case restartAlways:
		return fmt.Sprintf("Always(%v)", p.initial)
	case restartFixedRetries:
		return fmt.Sprintf("FixedRetries(%d, %v)", p.maxRetries, p.initial)
	default:
		return "Never"
	}
}
