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
	"github.com/primetype/organix/pkg/service"
)

// node is a frozen dependency graph node. Indices refer to positions in the
// graph's node slice, which preserves registration order.
type node struct {
	index   int
	desc    *service.Descriptor
	handler service.Handler

	deps       []int // services this node depends on
	dependents []int // services that depend on this node
}

func (n *node) id() service.ID { return n.desc.ID() }

// graph is the frozen dependency graph : the nodes in registration order, a
// deterministic topological start order, and the start order bucketed into
// levels of mutually independent services.
type graph struct {
	nodes  []*node
	order  []int
	levels [][]int
}

// newGraph freezes the registered nodes into a dependency graph.
// Dependency edges must already be resolved to node indices.
func newGraph(nodes []*node) (*graph, error) {
	order, err := topologicalOrder(nodes)
	if err != nil {
		return nil, err
	}
	return &graph{
		nodes:  nodes,
		order:  order,
		levels: dependencyLevels(nodes, order),
	}, nil
}

// topologicalOrder computes a dependency-first ordering of the nodes.
// Among nodes whose dependencies are all satisfied, the one registered first
// is placed first, making the order deterministic for a given registration sequence.
func topologicalOrder(nodes []*node) ([]int, error) {
	n := len(nodes)
	pending := make([]int, n) // count of unsatisfied dependencies
	for _, nd := range nodes {
		pending[nd.index] = len(nd.deps)
	}

	order := make([]int, 0, n)
	placed := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !placed[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, &CyclicDependencyError{Cycle: findCycle(nodes, placed)}
		}
		placed[next] = true
		order = append(order, next)
		for _, di := range nodes[next].dependents {
			pending[di]--
		}
	}
	return order, nil
}

// findCycle names one dependency cycle among the nodes that could not be placed.
// Every unplaced node has at least one unplaced dependency, so walking
// depends-on edges within the unplaced set must eventually revisit a node.
func findCycle(nodes []*node, placed []bool) []service.ID {
	start := -1
	for i := range nodes {
		if !placed[i] {
			start = i
			break
		}
	}

	visitedAt := make(map[int]int)
	var path []int
	cur := start
	for {
		if pos, ok := visitedAt[cur]; ok {
			cycle := path[pos:]
			ids := make([]service.ID, 0, len(cycle)+1)
			for _, i := range cycle {
				ids = append(ids, nodes[i].id())
			}
			ids = append(ids, nodes[cur].id())
			return ids
		}
		visitedAt[cur] = len(path)
		path = append(path, cur)
		for _, d := range nodes[cur].deps {
			if !placed[d] {
				cur = d
				break
			}
		}
	}
}

// dependencyLevels buckets the topological order into levels : level 0 holds
// services with no dependencies, level k holds services whose deepest dependency
// chain has length k. Services within a level are mutually independent and are
// started concurrently. Within a level, registration order is preserved.
func dependencyLevels(nodes []*node, order []int) [][]int {
	depth := make([]int, len(nodes))
	maxDepth := 0
	for _, i := range order {
		d := 0
		for _, dep := range nodes[i].deps {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[i] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]int, maxDepth+1)
	for _, i := range order {
		levels[depth[i]] = append(levels[depth[i]], i)
	}
	return levels
}

// transitiveDependents returns the indices of every node that directly or
// transitively depends on root, ordered deepest-first (reverse topological).
func (g *graph) transitiveDependents(root int) []int {
	reached := make(map[int]bool)
	var walk func(int)
	walk = func(i int) {
		for _, di := range g.nodes[i].dependents {
			if !reached[di] {
				reached[di] = true
				walk(di)
			}
		}
	}
	walk(root)

	var result []int
	for i := len(g.order) - 1; i >= 0; i-- {
		if reached[g.order[i]] {
			result = append(result, g.order[i])
		}
	}
	return result
}
