package lock

import "txn-db-golang/src/common"

// waitGraph tracks which transaction is waiting on which holders. An edge
// a -> b means a cannot proceed until b releases something. A cycle through
// the requester means deadlock.
type waitGraph struct {
	edges map[common.TransactionId]map[common.TransactionId]struct{}
}

func newWaitGraph() *waitGraph {
	return &waitGraph{edges: make(map[common.TransactionId]map[common.TransactionId]struct{})}
}

// setEdges replaces the waiter's outgoing edges with the given blockers.
// Blockers change between wakeups, so waiters re-declare before every check.
func (g *waitGraph) setEdges(from common.TransactionId, to []common.TransactionId) {
	if len(to) == 0 {
		delete(g.edges, from)
		return
	}
	out := make(map[common.TransactionId]struct{}, len(to))
	for _, t := range to {
		if t != from {
			out[t] = struct{}{}
		}
	}
	g.edges[from] = out
}

// clearWaiter drops the waiter's outgoing edges: it was granted, aborted, or
// gave up.
func (g *waitGraph) clearWaiter(from common.TransactionId) {
	delete(g.edges, from)
}

// hasCycleFrom reports whether start can reach itself, i.e. whether start
// participates in a deadlock cycle.
func (g *waitGraph) hasCycleFrom(start common.TransactionId) bool {
	visited := make(map[common.TransactionId]struct{})
	stack := make([]common.TransactionId, 0, len(g.edges))
	for next := range g.edges[start] {
		stack = append(stack, next)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == start {
			return true
		}
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		for next := range g.edges[cur] {
			stack = append(stack, next)
		}
	}
	return false
}
