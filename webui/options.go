package webui

import (
	"github.com/ogsenpai/mind/core/awareness"
	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/core/coordinator"
	"github.com/ogsenpai/mind/core/knowledge"
	"github.com/ogsenpai/mind/core/memory"
	"github.com/ogsenpai/mind/core/sse"
	"github.com/ogsenpai/mind/services/skills"
)

type Config struct {
	Engine      Generator
	Store       *memory.Store
	Coordinator *coordinator.Coordinator
	Monitor     *awareness.Monitor
	Skills      *skills.Registry
	Collection  *knowledge.Collection
	Stream      *sse.Stream
	Events      *bus.Bus
}

type Option func(*Config)

func WithEngine(g Generator) Option {
	return func(c *Config) {
		c.Engine = g
	}
}

func WithStore(s *memory.Store) Option {
	return func(c *Config) {
		c.Store = s
	}
}

func WithCoordinator(co *coordinator.Coordinator) Option {
	return func(c *Config) {
		c.Coordinator = co
	}
}

func WithMonitor(m *awareness.Monitor) Option {
	return func(c *Config) {
		c.Monitor = m
	}
}

func WithSkills(r *skills.Registry) Option {
	return func(c *Config) {
		c.Skills = r
	}
}

func WithCollection(k *knowledge.Collection) Option {
	return func(c *Config) {
		c.Collection = k
	}
}

func WithStream(s *sse.Stream) Option {
	return func(c *Config) {
		c.Stream = s
	}
}

func WithEvents(b *bus.Bus) Option {
	return func(c *Config) {
		c.Events = b
	}
}

func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func NewConfig(opts ...Option) *Config {
	c := &Config{}
	c.Apply(opts...)
	return c
}
