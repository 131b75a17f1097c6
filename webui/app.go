package webui

import (
	"context"
	"errors"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/mudler/xlog"

	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/pkg/llm"
)

// Generator produces a response for a user message. Satisfied by the RAG
// engine; tests substitute their own.
type Generator interface {
	Generate(ctx context.Context, input string) (string, error)
}

type App struct {
	config *Config
	*fiber.App
}

func NewApp(opts ...Option) *App {
	config := NewConfig(opts...)

	webapp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	a := &App{
		config: config,
		App:    webapp,
	}
	a.registerRoutes(webapp)
	return a
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat runs a message through the generator and returns the reply.
func (a *App) Chat() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
		}

		response, err := a.config.Engine.Generate(c.Context(), req.Message)
		if err != nil {
			xlog.Error("Chat generation failed", "error", err)
			status := fiber.StatusBadGateway
			var cerr *llm.CompletionError
			if errors.As(err, &cerr) && llm.IsTimeout(err) {
				status = fiber.StatusGatewayTimeout
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(chatResponse{Response: response})
	}
}

// Status reports the agent's current self-model.
func (a *App) Status() fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := a.config.Monitor.State()
		return c.JSON(fiber.Map{
			"state":   snap,
			"summary": a.config.Monitor.SystemStateSummary(),
		})
	}
}

// Capabilities reports what the agent can do.
func (a *App) Capabilities() fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := a.config.Monitor.State()
		return c.JSON(fiber.Map{
			"capabilities": snap.Capabilities,
			"summary":      a.config.Monitor.CapabilitiesSummary(),
		})
	}
}

// Skills lists the skill registry with its metrics.
func (a *App) Skills() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"skills":  a.config.Skills.All(),
			"metrics": a.config.Skills.Metrics(),
		})
	}
}

// Agents lists registered sub-agents and the capacity gate.
func (a *App) Agents() fiber.Handler {
	return func(c *fiber.Ctx) error {
		agents := a.config.Coordinator.Agents()
		return c.JSON(fiber.Map{
			"agents":     agents,
			"agentCount": len(agents),
			"busy":       a.config.Coordinator.BusyCount(),
			"canAccept":  a.config.Coordinator.CanAcceptMoreTasks(),
		})
	}
}

type registerAgentRequest struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// RegisterAgent adds a sub-agent to the coordinator.
func (a *App) RegisterAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerAgentRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
		}
		id := a.config.Coordinator.RegisterAgent(req.Name, req.Capabilities)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}

// RemoveAgent drops a sub-agent.
func (a *App) RemoveAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.config.Coordinator.RemoveAgent(c.Params("id")) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "agent not found"})
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Events returns retained bus events, optionally filtered by type.
func (a *App) Events() fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := bus.HistoryFilter{
			EventType: bus.EventType(c.Query("type")),
			Source:    c.Query("source"),
			Limit:     c.QueryInt("limit", 100),
		}
		events := a.config.Events.History(filter)
		return c.JSON(fiber.Map{"events": events, "count": len(events)})
	}
}

// MemoryStats summarizes the knowledge store.
func (a *App) MemoryStats() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(a.config.Store.Stats())
	}
}

type knowledgeSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// KnowledgeSearch queries the document collection.
func (a *App) KnowledgeSearch() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req knowledgeSearchRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
		}
		if req.Limit <= 0 {
			req.Limit = 5
		}

		results, err := a.config.Collection.Search(c.Context(), req.Query, req.Limit)
		if err != nil {
			xlog.Error("Knowledge search failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"results": results, "count": len(results)})
	}
}
