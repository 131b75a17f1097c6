package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mudler/xlog"

	"github.com/ogsenpai/mind/core/bus"
)

// Status tracks what a sub-agent is currently doing.
type Status string

const (
	StatusIdle  Status = "idle"
	StatusBusy  Status = "busy"
	StatusError Status = "error"
)

// DefaultMaxConcurrentTasks gates how many agents may be busy at once.
const DefaultMaxConcurrentTasks = 3

const source = "coordinator"

// SubAgent is a cooperating unit of work tracked by status and capability
// tags.
type SubAgent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Coordinator is the sub-agent registry and capacity gate. Status
// transitions are driven by events on the bus; the coordinator never
// dispatches work itself.
type Coordinator struct {
	mu            sync.RWMutex
	agents        map[string]*SubAgent
	maxConcurrent int
	events        *bus.Bus
	subscriptions []string
	now           func() time.Time
}

type Option func(*Coordinator)

// WithMaxConcurrentTasks overrides the default capacity gate.
func WithMaxConcurrentTasks(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxConcurrent = n
		}
	}
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a coordinator listening for agent status events on the bus.
func New(events *bus.Bus, opts ...Option) *Coordinator {
	c := &Coordinator{
		agents:        make(map[string]*SubAgent),
		maxConcurrent: DefaultMaxConcurrentTasks,
		events:        events,
		now:           time.Now,
	}
	for _, o := range opts {
		o(c)
	}

	c.subscriptions = []string{
		events.Subscribe(bus.EventAgentReady, c.transition(StatusIdle)),
		events.Subscribe(bus.EventAgentBusy, c.transition(StatusBusy)),
		events.Subscribe(bus.EventAgentError, c.transition(StatusError)),
	}
	return c
}

func (c *Coordinator) transition(to Status) bus.Handler {
	return func(e bus.Event) {
		payload, ok := e.Data.(bus.AgentPayload)
		if !ok {
			xlog.Warn("Agent event without agent payload", "type", e.Type)
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		agent, ok := c.agents[payload.AgentID]
		if !ok {
			return
		}
		agent.Status = to
		agent.LastActiveAt = c.now()
		xlog.Debug("Agent status updated", "agent", agent.Name, "status", to)
	}
}

// RegisterAgent creates an idle sub-agent and announces it.
func (c *Coordinator) RegisterAgent(name string, capabilities []string) string {
	c.mu.Lock()
	id := uuid.New().String()
	c.agents[id] = &SubAgent{
		ID:           id,
		Name:         name,
		Status:       StatusIdle,
		Capabilities: append([]string(nil), capabilities...),
		LastActiveAt: c.now(),
	}
	c.mu.Unlock()

	xlog.Info("Agent registered", "name", name, "id", id)

	c.events.Publish(bus.Event{
		Type:   bus.EventAgentInitialized,
		Source: source,
		Data: bus.AgentPayload{
			AgentID:      id,
			Name:         name,
			Status:       string(StatusIdle),
			Capabilities: capabilities,
		},
	})
	return id
}

// FindAvailable returns idle agents whose capabilities cover every required
// one, sorted by name.
func (c *Coordinator) FindAvailable(required []string) []SubAgent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []SubAgent
	for _, agent := range c.agents {
		if agent.Status != StatusIdle {
			continue
		}
		if !hasAll(agent.Capabilities, required) {
			continue
		}
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func hasAll(have, required []string) bool {
	for _, r := range required {
		found := false
		for _, h := range have {
			if h == r {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Agents lists all registered sub-agents, sorted by name.
func (c *Coordinator) Agents() []SubAgent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]SubAgent, 0, len(c.agents))
	for _, agent := range c.agents {
		out = append(out, *agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RemoveAgent drops a sub-agent. Returns false if the id is unknown.
func (c *Coordinator) RemoveAgent(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.agents[id]; !ok {
		return false
	}
	delete(c.agents, id)
	xlog.Info("Agent removed", "id", id)
	return true
}

// BusyCount reports how many agents are currently busy.
func (c *Coordinator) BusyCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, agent := range c.agents {
		if agent.Status == StatusBusy {
			n++
		}
	}
	return n
}

// SetMaxConcurrentTasks adjusts the capacity gate.
func (c *Coordinator) SetMaxConcurrentTasks(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxConcurrent = n
}

// CanAcceptMoreTasks reports whether another task may start: true iff fewer
// agents are busy than the configured maximum.
func (c *Coordinator) CanAcceptMoreTasks() bool {
	c.mu.RLock()
	max := c.maxConcurrent
	c.mu.RUnlock()
	return c.BusyCount() < max
}

// Close detaches the coordinator from the bus.
func (c *Coordinator) Close() {
	for _, id := range c.subscriptions {
		c.events.Unsubscribe(id)
	}
}
