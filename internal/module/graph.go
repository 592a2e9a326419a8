package module

import (
	"slices"
	"sort"
)

// validateGraph walks the dependency graph with a depth-first traversal.
// A node re-entered while still on the current path is a cycle and fails
// immediately with the full cycle path. Dependencies absent from the
// registry are accumulated across the whole traversal and reported together.
// The traversal is read-only.
func validateGraph(deps map[string][]string) error {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	visited := make(map[string]bool, len(deps))
	onPath := make(map[string]bool)
	var path []string
	var missing []MissingDependency

	var visit func(name string) *CycleError
	visit = func(name string) *CycleError {
		if onPath[name] {
			// Close the loop: report from the first occurrence of name.
			start := slices.Index(path, name)
			cycle := append(append([]string(nil), path[start:]...), name)
			return &CycleError{Path: cycle}
		}
		if visited[name] {
			return nil
		}
		visited[name] = true
		onPath[name] = true
		path = append(path, name)

		for _, dep := range deps[name] {
			if _, ok := deps[dep]; !ok {
				missing = append(missing, MissingDependency{Module: name, Dependency: dep})
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		onPath[name] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return &MissingDependencyError{Missing: missing}
	}
	return nil
}
