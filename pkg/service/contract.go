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
	"github.com/primetype/organix/pkg/msg"
	"github.com/rs/zerolog"
)

// Handler is the capability contract every service implements. The runtime drives the
// three operations and never inspects message payloads - payload types are opaque to
// the graph, lifecycle, and supervisor layers and are recovered inside the concrete
// implementation.
//
// OnStart initializes the service. Returning nil signals Ready; returning an error
// fails the start attempt. The start attempt also fails if OnStart does not return
// within the descriptor's StartTimeout.
//
// OnMessage handles one envelope at a time, in strict arrival order. Returning a
// non-nil error terminates the execution unit with a failure, which is handed to the
// supervisor.
//
// OnStop performs cleanup. reason is nil for a coordinated stop; it carries the
// failure cause when the runtime is tearing the service down after an error.
// Returning from OnStop acknowledges the stop. The execution unit is forcibly
// terminated if OnStop does not return within the descriptor's StopTimeout.
//
// Code-generation glue that dispatches a declared message-variant set to handler
// methods produces a Handler - the runtime only guarantees that these three
// operations are stable.
type Handler interface {
	OnStart(ctx *Context) error

	OnMessage(ctx *Context, envelope *msg.Envelope) error

	OnStop(ctx *Context, reason error) error
}

// HandlerFuncs adapts plain functions to the Handler contract.
// Nil functions are treated as no-ops, mirroring the optional lifecycle functions of a
// plain message-processing service.
type HandlerFuncs struct {
	Start   func(ctx *Context) error
	Message func(ctx *Context, envelope *msg.Envelope) error
	Stop    func(ctx *Context, reason error) error
}

func (h HandlerFuncs) OnStart(ctx *Context) error {
	if h.Start == nil {
		return nil
	}
	return h.Start(ctx)
}

func (h HandlerFuncs) OnMessage(ctx *Context, envelope *msg.Envelope) error {
	if h.Message == nil {
		return nil
	}
	return h.Message(ctx, envelope)
}

func (h HandlerFuncs) OnStop(ctx *Context, reason error) error {
	if h.Stop == nil {
		return nil
	}
	return h.Stop(ctx, reason)
}

// NewContext assembles the service context handed to every Handler operation.
// It is invoked by the runtime when an execution unit starts.
func NewContext(
	descriptor *Descriptor,
	logger zerolog.Logger,
	lookup func(ID) (*msg.Address, error),
	quit func(error),
	stopTrigger <-chan struct{},
) *Context {
	return &Context{
		descriptor:  descriptor,
		logger:      logger,
		lookup:      lookup,
		quit:        quit,
		stopTrigger: stopTrigger,
	}
}

// Context is the service's window into the runtime. It is scoped to one execution unit -
// a supervised restart receives a fresh Context.
type Context struct {
	descriptor *Descriptor
	logger     zerolog.Logger

	lookup func(ID) (*msg.Address, error)
	quit   func(error)

	stopTrigger <-chan struct{}
}

// ID returns the service's own id
func (c *Context) ID() ID { return c.descriptor.ID() }

// Descriptor returns the service's descriptor
func (c *Context) Descriptor() *Descriptor { return c.descriptor }

// Logger returns the service's logger
func (c *Context) Logger() zerolog.Logger { return c.logger }

// AddressOf resolves the Address of one of the service's declared dependencies.
// Lookups are restricted to declared dependencies - the dependency graph is the single
// source of truth for who may talk to whom at startup.
func (c *Context) AddressOf(id ID) (*msg.Address, error) {
	return c.lookup(id)
}

// Quit requests the service's own termination. A nil err stops the service normally;
// a non-nil err terminates the execution unit with a failure that is handed to the
// supervisor.
func (c *Context) Quit(err error) {
	c.quit(err)
}

// StopTrigger returns the channel that is closed when the service is signaled to stop.
// A service blocked on long work should also select on this channel.
func (c *Context) StopTrigger() <-chan struct{} {
	return c.stopTrigger
}
