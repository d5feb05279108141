package schema

import (
	"sort"
)

// CycleWarningComment is emitted when the pending-create graph contains a
// cycle and the remaining statements fall back to priority order.
const CycleWarningComment = "-- WARNING: circular dependencies detected; remaining statements are emitted in priority order."

// pendingCreate is a creation statement awaiting topological placement.
type pendingCreate struct {
	object    *Object
	statement string
}

// node is one vertex of the transient dependency graph the orderer builds.
// The graph lives only for the duration of one sort.
type node struct {
	key       string // normalized key
	object    *Object
	statement string
}

func nodeLess(a, b *node) bool {
	ap, bp := a.object.Kind.CreatePriority(), b.object.Kind.CreatePriority()
	if ap != bp {
		return ap < bp
	}
	return a.key < b.key
}

// orderPendingCreates linearizes pending creates with Kahn's algorithm so
// that every object is emitted after the objects it depends on. Ties break
// deterministically on (create priority, case-insensitive key). When a
// cycle prevents a full ordering, the emitted list is followed by a warning
// comment and the remaining statements in priority order; the orderer never
// fails.
func orderPendingCreates(pending []pendingCreate) []string {
	// Deduplicate by key, first occurrence wins.
	var nodes []*node
	byKey := map[string]*node{}
	for i := range pending {
		key := NormalizeKey(pending[i].object.Key())
		if _, ok := byKey[key]; ok {
			continue
		}
		n := &node{key: key, object: pending[i].object, statement: pending[i].statement}
		byKey[key] = n
		nodes = append(nodes, n)
	}

	// Edges run dependency -> dependent: a node becomes ready only once
	// everything it references has been emitted. Dependencies naming
	// objects outside the pending set are ignored.
	successors := map[string][]*node{}
	inDegree := map[string]int{}
	for _, n := range nodes {
		seen := map[string]bool{}
		for _, dep := range n.object.Dependencies {
			depKey := NormalizeKey(dep)
			if seen[depKey] || depKey == n.key {
				continue
			}
			seen[depKey] = true
			if _, ok := byKey[depKey]; !ok {
				continue
			}
			successors[depKey] = append(successors[depKey], n)
			inDegree[n.key]++
		}
	}

	var ready []*node
	for _, n := range nodes {
		if inDegree[n.key] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return nodeLess(ready[i], ready[j]) })

	emitted := make(map[string]bool, len(nodes))
	var ordered []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		emitted[n.key] = true
		ordered = append(ordered, n.statement)

		for _, succ := range successors[n.key] {
			inDegree[succ.key]--
			if inDegree[succ.key] == 0 {
				at := sort.Search(len(ready), func(i int) bool { return nodeLess(succ, ready[i]) })
				ready = append(ready, nil)
				copy(ready[at+1:], ready[at:])
				ready[at] = succ
			}
		}
	}

	if len(ordered) == len(nodes) {
		return ordered
	}

	// Cycle fallback: keep the script usable rather than aborting.
	var leftover []*node
	for _, n := range nodes {
		if !emitted[n.key] {
			leftover = append(leftover, n)
		}
	}
	sort.Slice(leftover, func(i, j int) bool { return nodeLess(leftover[i], leftover[j]) })

	ordered = append(ordered, CycleWarningComment+"\n")
	for _, n := range leftover {
		ordered = append(ordered, n.statement)
	}
	return ordered
}
