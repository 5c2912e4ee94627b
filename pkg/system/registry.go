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

	"github.com/primetype/organix/pkg/logging"
	"github.com/primetype/organix/pkg/service"
)

// Registry collects service registrations before the dependency graph is frozen.
// Registration order is significant : it breaks ties in the topological start order.
//
// Registry is safe for concurrent use, but the expected pattern is sequential
// registration during application assembly followed by a single Build.
type Registry struct {
	mu     sync.Mutex
	frozen bool
	nodes  []*node
	index  map[service.ID]int
}

// NewRegistry creates an empty service registry
func NewRegistry() *Registry {
	return &Registry{index: make(map[service.ID]int)}
}

// Register adds a service to the registry.
// Dependencies may refer to services that are not registered yet - they are resolved
// when the graph is frozen by Build.
//
// Types of errors:
//	- ErrRegistryFrozen
//	- *DuplicateServiceError
func (r *Registry) Register(descriptor *service.Descriptor, handler service.Handler) error {
	if descriptor == nil {
		logger.Panic().Msg("Register : descriptor is required")
	}
	if handler == nil {
		logger.Panic().Msg("Register : handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	id := descriptor.ID()
	if _, exists := r.index[id]; exists {
		return &DuplicateServiceError{ID: id}
	}

	n := &node{
		index:   len(r.nodes),
		desc:    descriptor,
		handler: handler,
	}
	r.nodes = append(r.nodes, n)
	r.index[id] = n.index

	LOG_EVENT_REGISTERED.Log(logger.Info()).
		Str(logging.SERVICE, id.String()).
		Strs("depends_on", idStrings(descriptor.DependsOn())).
		Msg("")
	return nil
}

// MustRegister registers the service and panics on error
func (r *Registry) MustRegister(descriptor *service.Descriptor, handler service.Handler) {
	if err := r.Register(descriptor, handler); err != nil {
		logger.Panic().Err(err).Msgf("Failed to register service : %s", descriptor.ID())
	}
}

// Build validates the dependency graph, freezes the registry, and returns the System.
// After a successful Build no further registrations are accepted.
//
// Types of errors:
//	- ErrRegistryFrozen - Build was already invoked
//	- *UnknownDependencyError
//	- *CyclicDependencyError
func (r *Registry) Build(opts ...Option) (*System, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil, ErrRegistryFrozen
	}

	// resolve dependency ids to node indices
	for _, n := range r.nodes {
		n.deps = nil
		n.dependents = nil
	}
	for _, n := range r.nodes {
		for _, dep := range n.desc.DependsOn() {
			di, exists := r.index[dep]
			if !exists {
				return nil, &UnknownDependencyError{ID: n.id(), Dependency: dep}
			}
			n.deps = append(n.deps, di)
			r.nodes[di].dependents = append(r.nodes[di].dependents, n.index)
		}
	}

	g, err := newGraph(r.nodes)
	if err != nil {
		return nil, err
	}
	r.frozen = true

	sys, err := newSystem(g, opts...)
	if err != nil {
		return nil, err
	}

	LOG_EVENT_GRAPH_FROZEN.Log(logger.Info()).
		Strs("start_order", idStrings(sys.StartOrder())).
		Msg("")
	return sys, nil
}

func idStrings(ids []service.ID) []string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = id.String()
	}
	return ss
}
