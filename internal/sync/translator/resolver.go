package translator

import (
	"sort"

	"sitesync/internal/core/apperror"
)

// topoOrder sorts all registered tables with Kahn's algorithm. Among tables
// that are ready at the same time the smallest name goes first.
func (r *Registry) topoOrder() ([]string, error) {
	indegree := make(map[string]int, len(r.byTable))
	dependents := make(map[string][]string, len(r.byTable))
	for table, t := range r.byTable {
		if _, ok := indegree[table]; !ok {
			indegree[table] = 0
		}
		for _, dep := range t.PullDependencies() {
			indegree[table]++
			dependents[dep] = append(dependents[dep], table)
		}
	}

	var ready []string
	for table, n := range indegree {
		if n == 0 {
			ready = append(ready, table)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(indegree))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dependent := range dependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, apperror.NewDependencyCycle(nil)
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// ResolvePullOrder orders the tables present in a batch so that every table
// follows all of its direct and transitive dependencies. Tables without a
// translator go last in name order; their records are ignored anyway.
func (r *Registry) ResolvePullOrder(present []string) []string {
	want := make(map[string]bool, len(present))
	for _, t := range present {
		want[t] = true
	}

	out := make([]string, 0, len(want))
	for _, table := range r.order {
		if want[table] {
			out = append(out, table)
			delete(want, table)
		}
	}

	unknown := make([]string, 0, len(want))
	for table := range want {
		unknown = append(unknown, table)
	}
	sort.Strings(unknown)
	return append(out, unknown...)
}

// Rank returns the position of every registered table in PullOrder.
func (r *Registry) Rank() map[string]int {
	rank := make(map[string]int, len(r.order))
	for i, table := range r.order {
		rank[table] = i
	}
	return rank
}
