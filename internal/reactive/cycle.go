package reactive

import "sort"

// findCycle reports the first dependency cycle in nodes, or nil for a DAG.
//
// The algorithm:
//  1. Run Tarjan's algorithm over the node → dependency edges, visiting
//     nodes in declaration order so the reported cycle is deterministic
//  2. The first SCC with more than one member, or a self-loop, is a cycle
//  3. Reconstruct a readable path through that SCC: ["a", "b", "a"]
func findCycle(nodes []*node) []string {
	var (
		index   = 0
		stack   []*node
		indices = make(map[*node]int)
		lowlink = make(map[*node]int)
		onStack = make(map[*node]bool)
		sccs    [][]*node
	)

	var strongConnect func(*node)
	strongConnect = func(v *node) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range v.deps {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []*node
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}

	for _, scc := range sccs {
		if len(scc) == 1 && !dependsOn(scc[0], scc[0]) {
			continue
		}
		return cyclePath(scc)
	}
	return nil
}

func dependsOn(n, dep *node) bool {
	for _, d := range n.deps {
		if d == dep {
			return true
		}
	}
	return false
}

// cyclePath returns the shortest dependency walk that starts and ends at the
// SCC's earliest-declared member, e.g. ["a", "b", "a"].
func cyclePath(scc []*node) []string {
	sort.Slice(scc, func(i, j int) bool { return scc[i].index < scc[j].index })

	members := make(map[*node]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	parent := make(map[*node]*node)
	queue := []*node{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range current.deps {
			if dep == start {
				path := []string{start.name}
				for n := current; n != start; n = parent[n] {
					path = append(path, n.name)
				}
				path = append(path, start.name)
				// path was collected back-to-front after the first element
				for i, j := 1, len(path)-2; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return path
			}
			if !members[dep] {
				continue
			}
			if _, seen := parent[dep]; seen {
				continue
			}
			parent[dep] = current
			queue = append(queue, dep)
		}
	}

	return []string{start.name}
}

// assignHeights sets each node's height (inputs 0, others 1 + max dep height)
// and returns nodes in topological order: by height, then declaration order.
// Must only be called on an acyclic graph.
func assignHeights(nodes []*node) []*node {
	done := make(map[*node]bool, len(nodes))

	var visit func(*node) int
	visit = func(n *node) int {
		if done[n] {
			return n.height
		}
		h := 0
		for _, dep := range n.deps {
			if dh := visit(dep) + 1; dh > h {
				h = dh
			}
		}
		n.height = h
		done[n] = true
		return h
	}

	order := make([]*node, len(nodes))
	copy(order, nodes)
	for _, n := range order {
		visit(n)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].height != order[j].height {
			return order[i].height < order[j].height
		}
		return order[i].index < order[j].index
	})
	return order
}
