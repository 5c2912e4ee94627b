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

package service_test

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/primetype/organix/pkg/service"
)

func TestRestartPolicy_Never(t *testing.T) {
	policy := service.Never()
	if policy.Permits(1) {
		t.Error("Never should not permit a restart")
	}
	if _, ok := policy.MaxRetries(); ok {
		t.Error("Never has no retry limit")
	}
	if delay := policy.NewBackOff().NextBackOff(); delay != backoff.Stop {
		t.Errorf("Never's schedule should stop immediately : %v", delay)
	}
}

func TestRestartPolicy_FixedRetries(t *testing.T) {
	policy := service.FixedRetries(2, 10*time.Millisecond)
	t.Log(policy)

	// a service failing on every attempt is attempted exactly n+1 times :
	// failures 1 and 2 permit a retry, failure 3 exhausts the policy
	if !policy.Permits(1) || !policy.Permits(2) {
		t.Error("FixedRetries(2) should permit the first two restarts")
	}
	if policy.Permits(3) {
		t.Error("FixedRetries(2) should not permit a third restart")
	}
	if n, ok := policy.MaxRetries(); !ok || n != 2 {
		t.Errorf("wrong retry limit : %d %v", n, ok)
	}
}

func TestRestartPolicy_Always(t *testing.T) {
	policy := service.Always(10 * time.Millisecond)
	for _, failures := range []int{1, 10, 1000000} {
		if !policy.Permits(failures) {
			t.Errorf("Always should permit a restart after %d failures", failures)
		}
	}
	if _, ok := policy.MaxRetries(); ok {
		t.Error("Always has no retry limit")
	}
}

func TestRestartPolicy_BackOffSchedule(t *testing.T) {
	policy := service.Always(10 * time.Millisecond)
	schedule := policy.NewBackOff()

	// deterministic exponential doubling
	expected := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
	}
	for i, want := range expected {
		if got := schedule.NextBackOff(); got != want {
			t.Errorf("interval %d : expected %v, got %v", i, want, got)
		}
	}

	// Reset rewinds the schedule to the initial interval
	schedule.Reset()
	if got := schedule.NextBackOff(); got != 10*time.Millisecond {
		t.Errorf("expected the initial interval after Reset : %v", got)
	}

	// the schedule is capped
	schedule.Reset()
	for i := 0; i < 100; i++ {
		if got := schedule.NextBackOff(); got > 30*time.Second {
			t.Fatalf("interval should be capped at 30s : %v", got)
		}
	}
}
