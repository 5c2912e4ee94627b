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

// Package service defines the service contract and lifecycle model of the runtime.
//
// Service Design:
//
//  1. Services are described by an immutable Descriptor : identity, semantic version,
//     declared dependencies, mailbox capacity, restart policy, and lifecycle timeouts.
//  2. Services implement the Handler contract : OnStart, OnMessage, OnStop. The runtime
//     drives the three operations from a single goroutine - handler implementations
//     need no internal synchronization for their own state.
//  3. The lifecycle is a state machine : Registered -> Starting -> Running -> Stopping
//     -> Stopped, with Failed as the terminal failure state. Terminal states have no
//     outgoing transitions. Supervised restarts rewind a failed attempt back to
//     Registered.
//  4. State transitions can be observed via StateChangeListener channels. Terminal
//     states are always delivered before the listener channel closes.
//  5. Services interact with the runtime only through the Context handed to each
//     Handler operation : dependency address lookup, voluntary termination, and the
//     stop trigger.
//
// All exported functions and methods are safe to be used concurrently unless specified
// otherwise.
package service
