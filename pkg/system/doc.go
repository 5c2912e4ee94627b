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

// Package system assembles registered services into a supervised runtime.
//
// An application is a set of services wired together through a dependency graph:
//
//  1. Services are registered with a Registry, along with the services they depend on.
//  2. Build freezes the registry into a System - registration after that point is rejected.
//     The graph is validated when frozen : unknown dependencies and dependency cycles fail
//     the build with errors naming the offender.
//  3. System.Run starts the services in dependency order - a service is only started once
//     every one of its dependencies is Running. Services with no dependency relationship
//     start concurrently. The start order is deterministic : ties are broken by
//     registration order.
//  4. Each service runs as a single execution unit processing its mailbox one envelope at
//     a time. Failures are handed to the supervisor, which applies the descriptor's
//     restart policy. The mailbox survives restarts - Address handles held by other
//     services stay valid.
//  5. Shutdown stops services in reverse dependency order : no service is signaled to stop
//     while a service depending on it is still running. A service that does not
//     acknowledge its stop within its stop timeout is forcibly terminated and reported.
//
// The permanent failure of a service marks every transitive dependent Failed. The
// permanent failure of a critical service additionally triggers a system-wide shutdown,
// surfaced as the fatal result of Run.
//
// Lifecycle transitions and supervision decisions are logged as structured events,
// published to prometheus, and optionally delivered to an application EventSink.
//
// All exported functions and methods are safe to be used concurrently unless specified
// otherwise.
package system
