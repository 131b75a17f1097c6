package skills

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mudler/xlog"
)

// Category groups skills for introspection.
type Category string

const (
	CategoryTechnical     Category = "TECHNICAL"
	CategoryStrategic     Category = "STRATEGIC"
	CategoryPhilosophical Category = "PHILOSOPHICAL"
	CategoryMartial       Category = "MARTIAL"
	CategoryLeadership    Category = "LEADERSHIP"
)

// Skill is one named capability with a proficiency level in [0,1].
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Level       float64  `json:"level"`
	Description string   `json:"description"`
}

// Metrics summarizes the registry contents.
type Metrics struct {
	TotalSkills      int              `json:"total_skills"`
	SkillsByCategory map[Category]int `json:"skills_by_category"`
	AverageLevel     float64          `json:"average_level"`
}

// Registry holds the agent's skills. Read-mostly; safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]Skill
}

// NewRegistry returns a registry seeded with the core skills.
func NewRegistry() *Registry {
	r := &Registry{skills: make(map[string]Skill)}

	r.Add("Strategic Analysis", CategoryStrategic, 0.9,
		"Ability to analyze situations and formulate effective strategies")
	r.Add("Wisdom Integration", CategoryPhilosophical, 0.85,
		"Integration of philosophical principles in decision making")
	r.Add("Technical Mastery", CategoryTechnical, 0.95,
		"Deep understanding of technical systems and implementation")

	return r
}

// Add registers a skill and returns its id.
func (r *Registry) Add(name string, category Category, level float64, description string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.skills[id] = Skill{
		ID:          id,
		Name:        name,
		Category:    category,
		Level:       level,
		Description: description,
	}
	xlog.Debug("Skill registered", "name", name, "category", category)
	return id
}

// Get returns a skill by id.
func (r *Registry) Get(id string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	return s, ok
}

// All returns every skill, sorted by name for stable output.
func (r *Registry) All() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ByCategory returns the skills in one category, sorted by name.
func (r *Registry) ByCategory(category Category) []Skill {
	var out []Skill
	for _, s := range r.All() {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// Metrics computes registry-wide counts and the average level.
func (r *Registry) Metrics() Metrics {
	all := r.All()
	m := Metrics{
		TotalSkills:      len(all),
		SkillsByCategory: make(map[Category]int),
	}
	var total float64
	for _, s := range all {
		m.SkillsByCategory[s.Category]++
		total += s.Level
	}
	if len(all) > 0 {
		m.AverageLevel = total / float64(len(all))
	}
	return m
}
