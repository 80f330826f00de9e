// Package dag validates a job list into a directed acyclic dependency graph.
// Validation is pure: it produces a Graph or fails fast with a structured
// error before any job runs.
package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
)

const moduleName = "dag"

// Graph is the validated adjacency structure of one job set, keyed by job id.
type Graph struct {
	jobs       map[string]model.JobConfig
	order      []string            // job ids in input order
	dependents map[string][]string // id -> ids that depend on it
	levels     [][]string          // Kahn layering, used by level-completed checkpoints
}

// Build validates the job list and produces a Graph.
// Every job must carry id, name and type; ids must be unique; every dependsOn
// entry must reference a job in the same list (exception.ErrConfig otherwise);
// the dependency relation must be acyclic (exception.ErrCycle otherwise).
func Build(jobs []model.JobConfig) (*Graph, error) {
	if len(jobs) == 0 {
		return nil, exception.NewConfigError(moduleName, "job list is empty", "")
	}

	g := &Graph{
		jobs:       make(map[string]model.JobConfig, len(jobs)),
		order:      make([]string, 0, len(jobs)),
		dependents: make(map[string][]string),
	}

	for i, jc := range jobs {
		if jc.ID == "" {
			return nil, exception.NewConfigError(moduleName, fmt.Sprintf("job at index %d is missing an id", i), "")
		}
		if jc.Name == "" {
			return nil, exception.NewConfigError(moduleName, "job is missing a name", jc.ID)
		}
		if jc.Type == "" {
			return nil, exception.NewConfigError(moduleName, "job is missing a type", jc.ID)
		}
		if _, exists := g.jobs[jc.ID]; exists {
			return nil, exception.NewConfigError(moduleName, "duplicate job id", jc.ID)
		}
		g.jobs[jc.ID] = jc
		g.order = append(g.order, jc.ID)
	}

	for _, jc := range jobs {
		for _, dep := range jc.DependsOn {
			if _, ok := g.jobs[dep]; !ok {
				return nil, exception.NewConfigError(moduleName,
					fmt.Sprintf("job '%s' depends on unknown job '%s'", jc.ID, dep), jc.ID)
			}
			if dep == jc.ID {
				return nil, exception.NewCycleError(moduleName, "job depends on itself", jc.ID)
			}
			g.dependents[dep] = append(g.dependents[dep], jc.ID)
		}
	}

	if path := g.findCycle(); len(path) > 0 {
		return nil, exception.NewCycleError(moduleName,
			fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
			strings.Join(path, ","))
	}

	g.levels = g.computeLevels()
	return g, nil
}

// Job returns the JobConfig for the given id.
func (g *Graph) Job(id string) (model.JobConfig, bool) {
	jc, ok := g.jobs[id]
	return jc, ok
}

// JobIDs returns all job ids in input order.
func (g *Graph) JobIDs() []string {
	return append([]string(nil), g.order...)
}

// Size returns the number of jobs in the graph.
func (g *Graph) Size() int {
	return len(g.order)
}

// Dependencies returns the ids the given job depends on.
func (g *Graph) Dependencies(id string) []string {
	jc, ok := g.jobs[id]
	if !ok {
		return nil
	}
	return append([]string(nil), jc.DependsOn...)
}

// Dependents returns the ids of jobs that directly depend on the given job.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Levels returns the Kahn layering of the graph: level 0 holds jobs with no
// dependencies, level n holds jobs whose deepest dependency sits at level n-1.
// Ids within a level are sorted for determinism.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, lvl := range g.levels {
		out[i] = append([]string(nil), lvl...)
	}
	return out
}

// LevelOf returns the level index of the given job id, or -1 if unknown.
func (g *Graph) LevelOf(id string) int {
	for i, lvl := range g.levels {
		for _, jid := range lvl {
			if jid == id {
				return i
			}
		}
	}
	return -1
}

// findCycle runs a DFS with recursion-stack tracking over input order and
// returns one cycle path (closed, first id repeated at the end), or nil.
func (g *Graph) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the recursion stack
		black = 2 // finished
	)
	color := make(map[string]int, len(g.jobs))
	parent := make(map[string]string, len(g.jobs))

	var cycle []string
	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		deps := g.jobs[id].DependsOn
		for _, dep := range deps {
			switch color[dep] {
			case white:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case gray:
				// Back edge id -> dep closes a cycle. Walk parents back to dep.
				cycle = append(cycle, dep)
				cur := id
				for cur != dep {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, dep)
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && dfs(id) {
			break
		}
	}
	if len(cycle) == 0 {
		return nil
	}
	// The parent walk built the path backwards; reverse it for reporting.
	for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
		cycle[i], cycle[j] = cycle[j], cycle[i]
	}
	return cycle
}

// computeLevels layers the acyclic graph via Kahn's algorithm.
func (g *Graph) computeLevels() [][]string {
	indeg := make(map[string]int, len(g.jobs))
	for _, id := range g.order {
		indeg[id] = len(g.jobs[id].DependsOn)
	}

	current := make([]string, 0)
	for _, id := range g.order {
		if indeg[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	for len(current) > 0 {
		sort.Strings(current)
		levels = append(levels, current)
		next := make([]string, 0)
		for _, id := range current {
			for _, dep := range g.dependents[id] {
				indeg[dep]--
				if indeg[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}
	return levels
}
