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
	"strings"
	"time"

	"github.com/Masterminds/semver"
)

// ID is the unique, stable service identifier. It is an opaque key used as a graph
// node and map key.
type ID string

func (id ID) String() string { return string(id) }

// descriptor defaults
const (
	DefaultMailboxCapacity = 64
	DefaultStartTimeout    = 10 * time.Second
	DefaultStopTimeout     = 10 * time.Second
)

// Descriptor is the immutable record describing a service : its identity, the services
// it depends on, and its runtime configuration.
// Descriptors are registered with the system registry before the dependency graph is frozen.
type Descriptor struct {
	id      ID
	version *semver.Version

	dependsOn []ID

	mailboxCapacity int
	restartPolicy   RestartPolicy
	startTimeout    time.Duration
	stopTimeout     time.Duration
	critical        bool
}

// DescriptorOption configures optional Descriptor settings
type DescriptorOption func(*Descriptor)

// DependsOn declares the services this service depends on.
// The service will only be started once every named dependency is Running.
func DependsOn(ids ...ID) DescriptorOption {
	return func(d *Descriptor) { d.dependsOn = append(d.dependsOn, ids...) }
}

// MailboxCapacity sets the bounded mailbox capacity. It must be > 0.
func MailboxCapacity(capacity int) DescriptorOption {
	return func(d *Descriptor) { d.mailboxCapacity = capacity }
}

// RestartWith sets the supervisor restart policy
func RestartWith(policy RestartPolicy) DescriptorOption {
	return func(d *Descriptor) { d.restartPolicy = policy }
}

// StartTimeout bounds how long OnStart may take before the start attempt counts as a failure
func StartTimeout(timeout time.Duration) DescriptorOption {
	return func(d *Descriptor) { d.startTimeout = timeout }
}

// StopTimeout bounds how long OnStop may take before the execution unit is forcibly terminated
func StopTimeout(timeout time.Duration) DescriptorOption {
	return func(d *Descriptor) { d.stopTimeout = timeout }
}

// Critical marks the service as critical : its permanent failure triggers a system-wide shutdown
func Critical() DescriptorOption {
	return func(d *Descriptor) { d.critical = true }
}

// NewDescriptor creates a new immutable service descriptor.
//
// id must not be blank and must not contain whitespace. version must parse as a semver version.
// The method panics on invalid settings - descriptors are build-time constants of the application.
func NewDescriptor(id string, version string, opts ...DescriptorOption) *Descriptor {
	id = strings.TrimSpace(id)
	if id == "" {
		logger.Panic().Msg("Descriptor id cannot be blank")
	}
	if strings.ContainsAny(id, " \t\n") {
		logger.Panic().Msgf("Descriptor id cannot contain whitespace : %q", id)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		logger.Panic().Err(err).Msgf("Descriptor version is invalid : %q", version)
	}

	d := &Descriptor{
		id:              ID(id),
		version:         v,
		mailboxCapacity: DefaultMailboxCapacity,
		restartPolicy:   Never(),
		startTimeout:    DefaultStartTimeout,
		stopTimeout:     DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.mailboxCapacity <= 0 {
		logger.Panic().Msgf("Descriptor mailbox capacity must be > 0 : %s -> %d", id, d.mailboxCapacity)
	}
	if d.startTimeout <= 0 {
		logger.Panic().Msgf("Descriptor start timeout must be > 0 : %s", id)
	}
	if d.stopTimeout <= 0 {
		logger.Panic().Msgf("Descriptor stop timeout must be > 0 : %s", id)
	}
	for _, dep := range d.dependsOn {
		if dep == d.id {
			logger.Panic().Msgf("Descriptor cannot depend on itself : %s", id)
		}
	}

	return d
}

// ID returns the unique service id
func (a *Descriptor) ID() ID { return a.id }

// Version returns the service version
func (a *Descriptor) Version() *semver.Version { return a.version }

// DependsOn returns the ids of the services this service depends on
func (a *Descriptor) DependsOn() []ID {
	deps := make([]ID, len(a.dependsOn))
	copy(deps, a.dependsOn)
	return deps
}

// MailboxCapacity returns the bounded mailbox capacity
func (a *Descriptor) MailboxCapacity() int { return a.mailboxCapacity }

// RestartPolicy returns the supervisor restart policy
func (a *Descriptor) RestartPolicy() RestartPolicy { return a.restartPolicy }

// StartTimeout returns the OnStart timeout
func (a *Descriptor) StartTimeout() time.Duration { return a.startTimeout }

// StopTimeout returns the OnStop timeout
func (a *Descriptor) StopTimeout() time.Duration { return a.stopTimeout }

// Critical returns true if the service's permanent failure triggers a system-wide shutdown
func (a *Descriptor) Critical() bool { return a.critical }

func (a *Descriptor) String() string {
	return fmt.Sprintf("Service : %s-%s", a.id, a.version)
}
