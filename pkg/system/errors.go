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
	"errors"
	"fmt"
	"strings"

	"github.com/primetype/organix/pkg/service"
)

var (
	// ErrRegistryFrozen indicates a registration was attempted after the dependency graph was frozen
	ErrRegistryFrozen = errors.New("Registry is frozen - no further registrations are accepted")

	// ErrAlreadyRunning indicates Run was invoked more than once
	ErrAlreadyRunning = errors.New("System can only be run once")

	// errSystemStopping is an internal signal that a supervision activity was interrupted by shutdown
	errSystemStopping = errors.New("System is stopping")
)

// DuplicateServiceError indicates a service id was registered more than once
type DuplicateServiceError struct {
	ID service.ID
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("Service is already registered : %s", e.ID)
}

// UnknownDependencyError indicates a descriptor depends on a service id that was never registered
type UnknownDependencyError struct {
	ID         service.ID
	Dependency service.ID
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("Service depends on an unknown service : %s -> %s", e.ID, e.Dependency)
}

// CyclicDependencyError indicates the dependency graph contains a cycle.
// Cycle names one cycle : the first and last elements are the same service.
type CyclicDependencyError struct {
	Cycle []service.ID
}

func (e *CyclicDependencyError) Error() string {
	ids := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		ids[i] = id.String()
	}
	return fmt.Sprintf("Dependency graph contains a cycle : %s", strings.Join(ids, " -> "))
}

// ServiceNotFoundError indicates the service id is not registered
type ServiceNotFoundError struct {
	ID service.ID
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("Service not found : %s", e.ID)
}

// NotADependencyError indicates a service attempted to look up the address of a service
// it does not declare as a dependency
type NotADependencyError struct {
	ID     service.ID
	Target service.ID
}

func (e *NotADependencyError) Error() string {
	return fmt.Sprintf("Service is not a declared dependency : %s -> %s", e.ID, e.Target)
}

// MaxRetriesExceededError indicates the supervisor exhausted the service's restart policy
type MaxRetriesExceededError struct {
	ID       service.ID
	Attempts int
	Err      error
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("Service exceeded its restart policy after %d attempts : %s : %v", e.Attempts, e.ID, e.Err)
}

// CriticalServiceFailedError indicates a critical service failed permanently, which
// triggers a system-wide shutdown and is surfaced as the fatal result of Run
type CriticalServiceFailedError struct {
	ID  service.ID
	Err error
}

func (e *CriticalServiceFailedError) Error() string {
	return fmt.Sprintf("Critical service failed : %s : %v", e.ID, e.Err)
}
