package compose

import "github.com/packrun/pack/errors"

// topoSort orders modules so every wiring's provider appears before its
// consumer. Modules with no dependency on each other keep their input
// order, matching the teacher's deterministic-iteration habit elsewhere in
// this codebase.
func topoSort(modules []*ParsedModule, wirings []Wiring) ([]string, error) {
	known := make(map[string]bool, len(modules))
	names := make([]string, 0, len(modules))
	for _, p := range modules {
		known[p.Name] = true
		names = append(names, p.Name)
	}

	deps := make(map[string][]string)
	for _, w := range wirings {
		if !known[w.Consumer] {
			return nil, errors.ModuleNotFound(w.Consumer)
		}
		if !known[w.Provider] {
			return nil, errors.ModuleNotFound(w.Provider)
		}
		deps[w.Consumer] = append(deps[w.Consumer], w.Provider)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return errors.CircularDependency(append(append([]string{}, stack...), name))
		}
		state[name] = visiting
		for _, dep := range deps[name] {
			if err := visit(dep, append(stack, name)); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}
