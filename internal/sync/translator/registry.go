package translator

import (
	"fmt"
	"sort"
	"strings"

	"sitesync/internal/core/apperror"
)

// Registry maps table names to translators. It is built once at startup
// from an explicit list and is read-only afterwards.
type Registry struct {
	byTable map[string]Translator
	order   []string
	sealed  bool
}

// NewRegistry registers translators and validates their dependency graph.
func NewRegistry(translators ...Translator) (*Registry, error) {
	r := &Registry{byTable: make(map[string]Translator, len(translators))}
	for _, t := range translators {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a translator. Call Validate after the last registration.
// A validated registry is sealed: its pull order is fixed and later
// registrations are rejected.
func (r *Registry) Register(t Translator) error {
	if r.sealed {
		return apperror.NewValidation(fmt.Sprintf("registry is sealed, cannot register table %q", t.TableName())).
			WithDetail("table", t.TableName())
	}
	table := t.TableName()
	if table == "" {
		return apperror.NewValidation("translator has empty table name")
	}
	if _, exists := r.byTable[table]; exists {
		return apperror.NewConflict(fmt.Sprintf("translator for table %q registered twice", table))
	}
	r.byTable[table] = t
	return nil
}

// Lookup returns the translator of table or NOT_FOUND.
func (r *Registry) Lookup(table string) (Translator, error) {
	t, ok := r.byTable[table]
	if !ok {
		return nil, apperror.NewNotFound("translator", table)
	}
	return t, nil
}

// Tables returns registered table names sorted by name.
func (r *Registry) Tables() []string {
	tables := make([]string, 0, len(r.byTable))
	for table := range r.byTable {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// Validate checks that every declared dependency is registered and that the
// static dependency graph is acyclic. A cycle is reported as
// DEPENDENCY_CYCLE with the offending path.
func (r *Registry) Validate() error {
	for _, table := range r.Tables() {
		for _, dep := range r.byTable[table].PullDependencies() {
			if _, ok := r.byTable[dep]; !ok {
				return apperror.NewValidation(fmt.Sprintf("table %q depends on unregistered table %q", table, dep)).
					WithDetail("table", table).
					WithDetail("dependency", dep)
			}
		}
	}

	if path := r.findCycle(); path != nil {
		return apperror.NewDependencyCycle(path).
			WithDetail("cycle", strings.Join(path, " -> "))
	}

	order, err := r.topoOrder()
	if err != nil {
		return err
	}
	r.order = order
	r.sealed = true
	return nil
}

// PullOrder returns every registered table in dependency order.
func (r *Registry) PullOrder() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// findCycle runs a depth-first search over dependency edges and returns the
// first cycle found as [a, b, ..., a], or nil. Tables are visited in name
// order so the reported path is deterministic.
func (r *Registry) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(r.byTable))
	var stack []string
	var cycle []string

	var visit func(table string) bool
	visit = func(table string) bool {
		color[table] = grey
		stack = append(stack, table)

		deps := append([]string(nil), r.byTable[table].PullDependencies()...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case grey:
				for i, t := range stack {
					if t == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[table] = black
		return false
	}

	for _, table := range r.Tables() {
		if color[table] == white && visit(table) {
			return cycle
		}
	}
	return nil
}
