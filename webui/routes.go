package webui

import (
	fiber "github.com/gofiber/fiber/v2"
)

func (a *App) registerRoutes(webapp *fiber.App) {
	webapp.Get("/api/status", a.Status())
	webapp.Get("/api/capabilities", a.Capabilities())
	webapp.Get("/api/skills", a.Skills())

	webapp.Post("/api/chat", a.Chat())

	webapp.Get("/api/agents", a.Agents())
	webapp.Post("/api/agents", a.RegisterAgent())
	webapp.Delete("/api/agents/:id", a.RemoveAgent())

	webapp.Get("/api/events", a.Events())
	webapp.Get("/api/memory/stats", a.MemoryStats())
	webapp.Post("/api/knowledge/search", a.KnowledgeSearch())

	webapp.Get("/sse", func(c *fiber.Ctx) error {
		return a.config.Stream.Handle(c)
	})
}
