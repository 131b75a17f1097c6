package awareness

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mudler/xlog"
	"github.com/robfig/cron/v3"

	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/core/memory"
	"github.com/ogsenpai/mind/services/skills"
)

// DefaultSchedule is how often the background introspection runs.
const DefaultSchedule = "@every 5m"

// Version identifies the running cognitive core.
const Version = "0.1.0"

// activeModules lists the components the core runs with.
var activeModules = []string{"memory", "vector", "bus", "rag", "coordinator", "awareness", "knowledge"}

// performanceWindow bounds how far back task outcomes are considered.
const performanceWindow = 24 * time.Hour

const source = "awareness"

// Capability is a named proficiency derived from the skill registry.
type Capability struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Level    float64 `json:"level"`
}

// Performance aggregates recent task outcomes.
type Performance struct {
	TasksCompleted      int           `json:"tasks_completed"`
	TasksFailed         int           `json:"tasks_failed"`
	SuccessRate         float64       `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	AverageAccuracy     float64       `json:"average_accuracy"`
}

// Snapshot is the agent's view of itself at a point in time. It is stored
// as working-state memory so past self-assessments remain retrievable.
type Snapshot struct {
	TakenAt          time.Time    `json:"taken_at"`
	Capabilities     []Capability `json:"capabilities"`
	KnowledgeDomains []string     `json:"knowledge_domains"`
	Performance      Performance  `json:"performance"`
}

func (s Snapshot) Text() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// Monitor keeps the agent's self-model current. A cron schedule drives the
// periodic introspection; agent, memory and task events trigger partial
// refreshes in between.
type Monitor struct {
	mu       sync.RWMutex
	state    Snapshot
	store    *memory.Store
	registry *skills.Registry
	events   *bus.Bus

	schedule      string
	environment   string
	startedAt     time.Time
	cron          *cron.Cron
	subscriptions []string
	now           func() time.Time
}

type Option func(*Monitor)

// WithSchedule overrides the introspection cron expression.
func WithSchedule(spec string) Option {
	return func(m *Monitor) {
		if spec != "" {
			m.schedule = spec
		}
	}
}

// WithEnvironment overrides the reported deployment environment.
func WithEnvironment(env string) Option {
	return func(m *Monitor) {
		if env != "" {
			m.environment = env
		}
	}
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New builds a monitor and wires the reactive refreshes. The background
// schedule does not run until Start is called.
func New(store *memory.Store, registry *skills.Registry, events *bus.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		store:       store,
		registry:    registry,
		events:      events,
		schedule:    DefaultSchedule,
		environment: "development",
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.startedAt = m.now()

	m.subscriptions = []string{
		events.Subscribe(bus.EventAgentInitialized, func(bus.Event) { m.RefreshCapabilities() }),
		events.Subscribe(bus.EventMemoryUpdated, func(bus.Event) { m.RefreshKnowledgeDomains() }),
		events.Subscribe(bus.EventTaskUpdated, func(bus.Event) { m.RefreshPerformance() }),
	}

	m.Introspect()
	return m
}

// Start launches the periodic introspection.
func (m *Monitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, m.Introspect); err != nil {
		return fmt.Errorf("scheduling introspection: %w", err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	xlog.Info("Introspection loop started", "schedule", m.schedule)
	return nil
}

// Stop halts the schedule and detaches from the bus.
func (m *Monitor) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	for _, id := range m.subscriptions {
		m.events.Unsubscribe(id)
	}
	xlog.Info("Introspection loop stopped")
}

// Introspect refreshes the full self-model and persists a snapshot as
// working-state memory.
func (m *Monitor) Introspect() {
	m.RefreshCapabilities()
	m.RefreshKnowledgeDomains()
	m.RefreshPerformance()

	snap := m.State()
	m.store.Store(memory.KindWorkingState, snap, memory.Metadata{
		Source:       source,
		Importance:   0.8,
		Context:      "self-awareness",
		Associations: []string{"introspection", "capabilities", "performance"},
	})

	xlog.Debug("Introspection complete",
		"capabilities", len(snap.Capabilities),
		"domains", len(snap.KnowledgeDomains),
		"success_rate", snap.Performance.SuccessRate)
}

// RefreshCapabilities rebuilds the capability list from the skill registry.
func (m *Monitor) RefreshCapabilities() {
	var caps []Capability
	for _, skill := range m.registry.All() {
		caps = append(caps, Capability{
			Name:     skill.Name,
			Category: string(skill.Category),
			Level:    skill.Level,
		})
	}

	m.mu.Lock()
	m.state.Capabilities = caps
	m.state.TakenAt = m.now()
	m.mu.Unlock()
}

// RefreshKnowledgeDomains recomputes the distinct contexts of stored
// knowledge entries.
func (m *Monitor) RefreshKnowledgeDomains() {
	seen := make(map[string]struct{})
	for _, ent := range m.store.Query(memory.Query{Kind: memory.KindKnowledge}) {
		if ctx := ent.Metadata.Context; ctx != "" {
			seen[ctx] = struct{}{}
		}
	}
	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	m.mu.Lock()
	m.state.KnowledgeDomains = domains
	m.state.TakenAt = m.now()
	m.mu.Unlock()
}

// RefreshPerformance aggregates task outcomes recorded in the last day.
func (m *Monitor) RefreshPerformance() {
	now := m.now()
	tasks := m.store.Query(memory.Query{
		Kind:  memory.KindTask,
		Start: now.Add(-performanceWindow),
	})

	var perf Performance
	var totalResponse time.Duration
	var timed int
	var totalAccuracy float64
	var scored int

	for _, ent := range tasks {
		record, ok := ent.Content.(memory.TaskRecord)
		if !ok {
			continue
		}
		switch record.Status {
		case memory.TaskCompleted:
			perf.TasksCompleted++
		case memory.TaskFailed:
			perf.TasksFailed++
		}
		// Response time and accuracy are averaged over every record that
		// carries them, whatever its status.
		if d, ok := record.ResponseTime(); ok {
			totalResponse += d
			timed++
		}
		if record.Accuracy != nil {
			totalAccuracy += *record.Accuracy
			scored++
		}
	}

	// Success rate is completed over all tasks in the window, pending
	// included.
	if len(tasks) > 0 {
		perf.SuccessRate = float64(perf.TasksCompleted) / float64(len(tasks))
	}
	if timed > 0 {
		perf.AverageResponseTime = totalResponse / time.Duration(timed)
	}
	if scored > 0 {
		perf.AverageAccuracy = totalAccuracy / float64(scored)
	}

	m.mu.Lock()
	m.state.Performance = perf
	m.state.TakenAt = now
	m.mu.Unlock()
}

// State returns a copy of the current self-model.
func (m *Monitor) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.state
	snap.Capabilities = append([]Capability(nil), m.state.Capabilities...)
	snap.KnowledgeDomains = append([]string(nil), m.state.KnowledgeDomains...)
	return snap
}

// CapabilitiesSummary renders the capability list for prompts and status
// endpoints.
func (m *Monitor) CapabilitiesSummary() string {
	snap := m.State()
	if len(snap.Capabilities) == 0 {
		return "No capabilities registered."
	}

	var b strings.Builder
	b.WriteString("Current capabilities:\n")
	for _, c := range snap.Capabilities {
		fmt.Fprintf(&b, "- %s (%s): %.0f%%\n", c.Name, c.Category, c.Level*100)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SystemStateSummary renders a one-look status report: deployment state
// first, then the current self-model.
func (m *Monitor) SystemStateSummary() string {
	snap := m.State()
	uptime := m.now().Sub(m.startedAt)

	var b strings.Builder
	fmt.Fprintf(&b, "Version: %s\n", Version)
	fmt.Fprintf(&b, "Active modules: %s\n", strings.Join(activeModules, ", "))
	fmt.Fprintf(&b, "Environment: %s\n", m.environment)
	fmt.Fprintf(&b, "Uptime: %.1f hours\n", uptime.Hours())
	fmt.Fprintf(&b, "Capabilities: %d\n", len(snap.Capabilities))
	if len(snap.KnowledgeDomains) > 0 {
		fmt.Fprintf(&b, "Knowledge domains: %s\n", strings.Join(snap.KnowledgeDomains, ", "))
	} else {
		b.WriteString("Knowledge domains: none\n")
	}
	fmt.Fprintf(&b, "Tasks completed (24h): %d\n", snap.Performance.TasksCompleted)
	fmt.Fprintf(&b, "Success rate: %.0f%%\n", snap.Performance.SuccessRate*100)
	if snap.Performance.AverageResponseTime > 0 {
		fmt.Fprintf(&b, "Average response time: %s\n", snap.Performance.AverageResponseTime.Round(time.Millisecond))
	}
	return strings.TrimRight(b.String(), "\n")
}
