package swarm

import (
	"errors"
	"fmt"

	"github.com/picogrid/swarm-simulations/pkg/geometry"
	"github.com/picogrid/swarm-simulations/pkg/logger"
	"github.com/picogrid/swarm-simulations/pkg/obstacles"
)

// TickResult describes what happened during one Step.
type TickResult struct {
	Tick  uint64
	Graph *Graph
	// Crashed lists agents whose crash flag turned on during this tick.
	Crashed []*Agent
	// Skipped lists agents whose update was dropped by the NaN guard.
	Skipped    []*Agent
	Components int
	MainSize   int
	Obstacles  int
}

// Context owns everything one swarm needs to advance: agents, tuning, the
// obstacle store, the leader and the reference velocity. All methods must be
// called from the goroutine that owns the Context.
type Context struct {
	Params    Params
	Obstacles *obstacles.Store
	LeaderID  int
	Alignment geometry.Vec3

	agents []*Agent
	graph  *Graph
	model  *ForceModel
	tick   uint64
	log    logger.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for guard warnings.
func WithLogger(l logger.Logger) Option {
	return func(c *Context) { c.log = l }
}

// WithLeader sets the leader agent ID.
func WithLeader(id int) Option {
	return func(c *Context) { c.LeaderID = id }
}

// NewContext validates params and returns a context over agents.
func NewContext(params Params, agents []*Agent, store *obstacles.Store, opts ...Option) (*Context, error) {
	if store == nil {
		return nil, errors.New("obstacle store is required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid swarm parameters: %w", err)
	}
	seen := make(map[int]bool, len(agents))
	for _, a := range agents {
		if a == nil {
			return nil, errors.New("nil agent")
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate agent id %d", a.ID)
		}
		seen[a.ID] = true
	}

	c := &Context{
		Params:    params,
		Obstacles: store,
		agents:    append([]*Agent(nil), agents...),
		log:       logger.Default(),
	}
	c.model = &ForceModel{Params: params, Obstacles: store}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Agents returns the live agent list.
func (c *Context) Agents() []*Agent { return c.agents }

// Agent returns the agent with id, or nil.
func (c *Context) Agent(id int) *Agent {
	for _, a := range c.agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// Graph returns the graph built by the last Step, or nil before the first.
func (c *Context) Graph() *Graph { return c.graph }

// Tick returns the number of completed steps.
func (c *Context) Tick() uint64 { return c.tick }

// AddAgent appends an agent. It fails on a duplicate ID.
func (c *Context) AddAgent(a *Agent) error {
	if c.Agent(a.ID) != nil {
		return fmt.Errorf("duplicate agent id %d", a.ID)
	}
	c.agents = append(c.agents, a)
	return nil
}

// Step advances the swarm by one fixed tick: rebuild the graph, refresh the
// obstacle working set, compute every movable agent's forces, then integrate.
// Forces are all computed before any agent moves. Agents whose state is not
// finite are left out of the graph and skipped so the corruption cannot reach
// their neighbors.
func (c *Context) Step() TickResult {
	c.tick++
	res := TickResult{Tick: c.tick}

	live := make([]*Agent, 0, len(c.agents))
	for _, a := range c.agents {
		if a.Finite() {
			live = append(live, a)
			continue
		}
		c.skip(&res, a)
	}

	c.graph = BuildGraph(live, c.Params.NeighborRadius())
	c.graph.Refresh(c.LeaderID)
	res.Graph = c.graph
	res.Components = len(c.graph.componentIndices())
	res.MainSize = len(c.graph.Main())

	positions := make([]geometry.Vec3, 0, len(live))
	for _, a := range live {
		if a.Movable {
			positions = append(positions, a.Position)
		}
	}
	res.Obstacles = c.Obstacles.Refresh(positions, c.Params.AvoidanceRadius).Len()

	wasCrashed := make(map[*Agent]bool, len(live))
	for _, a := range live {
		wasCrashed[a] = a.Crashed
		if !a.Movable {
			continue
		}
		c.model.Compute(a, c.graph, c.Alignment)
		if c.graph.InMain(a) {
			a.Score = 1
		} else {
			a.Score = 0
		}
		a.NetworkScore = float64(c.graph.Degree(a))
	}

	for _, a := range live {
		if !a.Movable {
			continue
		}
		if !geometry.IsFinite(a.Acceleration) || !Integrate(a, c.Params, 1) {
			c.skip(&res, a)
			continue
		}
		a.RecordForces()
		if a.Crashed && !wasCrashed[a] {
			res.Crashed = append(res.Crashed, a)
		}
	}
	return res
}

func (c *Context) skip(res *TickResult, a *Agent) {
	a.Acceleration = geometry.Zero
	res.Skipped = append(res.Skipped, a)
	c.log.WithFields(map[string]interface{}{
		"agent": a.ID,
		"tick":  c.tick,
	}).Warn("non-finite state, update skipped")
}

// RemoveCrashed drops crashed agents from the context and returns them.
func (c *Context) RemoveCrashed() []*Agent {
	var removed []*Agent
	kept := c.agents[:0]
	for _, a := range c.agents {
		if a.Crashed {
			removed = append(removed, a)
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(c.agents); i++ {
		c.agents[i] = nil
	}
	c.agents = kept
	return removed
}

// Snapshot returns clones of every agent for use off the tick goroutine.
func (c *Context) Snapshot() []*Agent {
	out := make([]*Agent, len(c.agents))
	for i, a := range c.agents {
		out[i] = a.Clone()
	}
	return out
}

// Positions returns the positions of the movable agents.
func (c *Context) Positions() []geometry.Vec3 {
	var out []geometry.Vec3
	for _, a := range c.agents {
		if a.Movable {
			out = append(out, a.Position)
		}
	}
	return out
}
