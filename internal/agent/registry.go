package agent

// The agent set is closed: adding a variant means adding a type here,
// not registering one at runtime.

// Independent returns the agents with no upstream dependencies, in
// dispatch order. They may execute concurrently.
func Independent() []Agent {
	return []Agent{Financial{}, Risk{}, Memo{}, Quote{}, Chart{}}
}

// Dependent returns the agents that consume other agents' outputs.
// They run only after every independent agent has reached a terminal
// state.
func Dependent() []Agent {
	return []Agent{Consistency{}}
}

// All returns every agent, independent first.
func All() []Agent {
	return append(Independent(), Dependent()...)
}

// ByName looks up an agent by its Name. Returns nil when no such agent
// exists.
func ByName(name string) Agent {
	for _, a := range All() {
		if a.Name() == name {
			return a
		}
	}
	return nil
}
