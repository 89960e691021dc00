package swarm

import (
	"github.com/picogrid/swarm-simulations/pkg/geometry"
)

// AdjacencyFunc decides whether two distinct agents are linked.
type AdjacencyFunc func(a, b *Agent) bool

// LineOfSight answers segment-blocking queries. *obstacles.Store satisfies it.
type LineOfSight interface {
	SegmentIntersects(a, b geometry.Vec3) bool
}

// DistanceAdjacency links agents at most radius apart.
func DistanceAdjacency(radius float64) AdjacencyFunc {
	r2 := radius * radius
	return func(a, b *Agent) bool {
		return geometry.SqrDistance(a.Position, b.Position) <= r2
	}
}

// VisibilityAdjacency links agents within radius that can also see each other.
func VisibilityAdjacency(radius float64, los LineOfSight) AdjacencyFunc {
	near := DistanceAdjacency(radius)
	return func(a, b *Agent) bool {
		return near(a, b) && !los.SegmentIntersects(a.Position, b.Position)
	}
}

// Graph is an undirected proximity graph over a fixed list of agents.
// It is rebuilt every tick and never shared across goroutines.
type Graph struct {
	agents    []*Agent
	index     map[*Agent]int
	adjacency [][]int

	components [][]int
	main       []bool
	mainIdx    int
}

// BuildGraph links every pair of agents within radius of each other.
func BuildGraph(agents []*Agent, radius float64) *Graph {
	return BuildGraphWith(agents, DistanceAdjacency(radius))
}

// BuildGraphWith builds the graph with a custom adjacency rule. The rule is
// evaluated once per unordered pair, so the result is symmetric.
func BuildGraphWith(agents []*Agent, adjacent AdjacencyFunc) *Graph {
	g := &Graph{
		agents:    append([]*Agent(nil), agents...),
		index:     make(map[*Agent]int, len(agents)),
		adjacency: make([][]int, len(agents)),
		mainIdx:   -1,
	}
	for i, a := range g.agents {
		g.index[a] = i
	}
	for i := 0; i < len(g.agents); i++ {
		for j := i + 1; j < len(g.agents); j++ {
			if adjacent(g.agents[i], g.agents[j]) {
				g.adjacency[i] = append(g.adjacency[i], j)
				g.adjacency[j] = append(g.adjacency[j], i)
			}
		}
	}
	return g
}

// Len returns the number of agents in the graph.
func (g *Graph) Len() int { return len(g.agents) }

// Agents returns the agents in insertion order.
func (g *Graph) Agents() []*Agent { return g.agents }

// Neighbors returns the agents linked to a. Unknown agents have none.
func (g *Graph) Neighbors(a *Agent) []*Agent {
	i, ok := g.index[a]
	if !ok {
		return nil
	}
	out := make([]*Agent, len(g.adjacency[i]))
	for k, j := range g.adjacency[i] {
		out[k] = g.agents[j]
	}
	return out
}

// Degree returns the number of neighbors of a.
func (g *Graph) Degree(a *Agent) int {
	if i, ok := g.index[a]; ok {
		return len(g.adjacency[i])
	}
	return 0
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	var n int
	for _, adj := range g.adjacency {
		n += len(adj)
	}
	return n / 2
}

// Components returns the connected components, discovered by BFS in agent
// order. Every agent appears in exactly one component.
func (g *Graph) Components() [][]*Agent {
	comps := g.componentIndices()
	out := make([][]*Agent, len(comps))
	for c, members := range comps {
		out[c] = make([]*Agent, len(members))
		for k, i := range members {
			out[c][k] = g.agents[i]
		}
	}
	return out
}

func (g *Graph) componentIndices() [][]int {
	if g.components != nil {
		return g.components
	}
	visited := make([]bool, len(g.agents))
	comps := [][]int{}
	for start := range g.agents {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue := []int{start}
		for head := 0; head < len(queue); head++ {
			for _, j := range g.adjacency[queue[head]] {
				if !visited[j] {
					visited[j] = true
					queue = append(queue, j)
				}
			}
		}
		comps = append(comps, queue)
	}
	g.components = comps
	return comps
}

// SelectMainComponent picks the component containing leaderID, or else the
// first largest one. It returns nil when there are no components.
func SelectMainComponent(components [][]*Agent, leaderID int) []*Agent {
	if i := mainComponentIndex(components, leaderID); i >= 0 {
		return components[i]
	}
	return nil
}

func mainComponentIndex(components [][]*Agent, leaderID int) int {
	best := -1
	for c, comp := range components {
		for _, a := range comp {
			if a.ID == leaderID {
				return c
			}
		}
		if best < 0 || len(comp) > len(components[best]) {
			best = c
		}
	}
	return best
}

// Refresh computes the components, marks the main component for leaderID and
// assigns layers.
func (g *Graph) Refresh(leaderID int) {
	g.main = make([]bool, len(g.agents))
	g.mainIdx = mainComponentIndex(g.Components(), leaderID)
	if g.mainIdx >= 0 {
		for _, i := range g.components[g.mainIdx] {
			g.main[i] = true
		}
	}
	g.AssignLayers(leaderID)
}

// Main returns the agents of the main component selected by Refresh.
func (g *Graph) Main() []*Agent {
	if g.mainIdx < 0 {
		return nil
	}
	members := g.components[g.mainIdx]
	out := make([]*Agent, len(members))
	for k, i := range members {
		out[k] = g.agents[i]
	}
	return out
}

// InMain reports whether a belongs to the main component.
func (g *Graph) InMain(a *Agent) bool {
	i, ok := g.index[a]
	return ok && g.main != nil && g.main[i]
}

// Leader returns the agent with leaderID, or nil.
func (g *Graph) Leader(leaderID int) *Agent {
	for _, a := range g.agents {
		if a.ID == leaderID {
			return a
		}
	}
	return nil
}

// AssignLayers resets every layer to 0, then numbers agents by BFS depth from
// the leader starting at 1. A missing leader leaves all layers at 0.
func (g *Graph) AssignLayers(leaderID int) {
	for _, a := range g.agents {
		a.Layer = 0
	}
	leader := g.Leader(leaderID)
	if leader == nil {
		return
	}
	root := g.index[leader]
	leader.Layer = 1
	queue := []int{root}
	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		for _, j := range g.adjacency[cur] {
			if g.agents[j].Layer == 0 {
				g.agents[j].Layer = g.agents[cur].Layer + 1
				queue = append(queue, j)
			}
		}
	}
}

// LayerCounts returns how many agents sit on each layer.
func (g *Graph) LayerCounts() map[int]int {
	counts := make(map[int]int)
	for _, a := range g.agents {
		counts[a.Layer]++
	}
	return counts
}
