package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mudler/xlog"

	"github.com/ogsenpai/mind/core/awareness"
	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/core/coordinator"
	"github.com/ogsenpai/mind/core/knowledge"
	"github.com/ogsenpai/mind/core/memory"
	"github.com/ogsenpai/mind/core/rag"
	"github.com/ogsenpai/mind/core/sse"
	"github.com/ogsenpai/mind/core/vector"
	"github.com/ogsenpai/mind/pkg/llm"
	"github.com/ogsenpai/mind/services/skills"
	"github.com/ogsenpai/mind/webui"
)

var (
	model          string
	embeddingModel string
	apiURL         string
	apiKey         string
	timeout        string
	knowledgeDir   string
	listenAddr     string
)

func init() {
	_ = godotenv.Load()

	model = os.Getenv("OGSENPAI_MODEL")
	embeddingModel = os.Getenv("OGSENPAI_EMBEDDING_MODEL")
	apiURL = os.Getenv("OGSENPAI_LLM_API_URL")
	apiKey = os.Getenv("OGSENPAI_LLM_API_KEY")
	timeout = os.Getenv("OGSENPAI_TIMEOUT")
	knowledgeDir = os.Getenv("OGSENPAI_KNOWLEDGE_DIR")
	listenAddr = os.Getenv("OGSENPAI_LISTEN_ADDR")

	if apiURL == "" {
		panic("OGSENPAI_LLM_API_URL not set")
	}
	if listenAddr == "" {
		listenAddr = ":3000"
	}
}

func main() {
	events := bus.New()
	store := memory.NewStore()
	registry := skills.NewRegistry()

	client := llm.NewClient(apiKey, apiURL, timeout)

	var embedder vector.Embedder
	if embeddingModel != "" {
		embedder = llm.NewEmbedder(client, embeddingModel)
	} else {
		embedder = vector.NewTokenEmbedder(vector.DefaultDimension)
	}
	index := vector.NewIndex(embedder)

	collection, err := knowledge.NewCollection("knowledge", embedder)
	if err != nil {
		panic(err)
	}

	if knowledgeDir != "" {
		loader := knowledge.NewLoader(store, index, knowledge.WithCollection(collection))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if _, err := loader.LoadDirectory(ctx, knowledgeDir); err != nil {
			xlog.Error("Failed to load knowledge directory", "dir", knowledgeDir, "error", err)
		}
		cancel()
	}

	engineOpts := []rag.Option{}
	if model != "" {
		engineOpts = append(engineOpts, rag.WithModel(model))
	}
	engine := rag.NewEngine(store, index, events, client, engineOpts...)

	coord := coordinator.New(events)
	defer coord.Close()

	monitor := awareness.New(store, registry, events)
	if err := monitor.Start(); err != nil {
		panic(err)
	}
	defer monitor.Stop()

	stream := sse.New(events)
	defer stream.Close()

	app := webui.NewApp(
		webui.WithEngine(engine),
		webui.WithStore(store),
		webui.WithCoordinator(coord),
		webui.WithMonitor(monitor),
		webui.WithSkills(registry),
		webui.WithCollection(collection),
		webui.WithStream(stream),
		webui.WithEvents(events),
	)

	events.Publish(bus.Event{
		Type:   bus.EventAgentReady,
		Source: "main",
		Data:   bus.AgentPayload{AgentID: "ogsenpai", Name: "OGSenpai", Status: "idle"},
	})

	xlog.Info("OGSenpai listening", "addr", listenAddr)
	log.Fatal(app.Listen(listenAddr))
}
