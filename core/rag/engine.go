package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mudler/xlog"

	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/core/memory"
	"github.com/ogsenpai/mind/core/vector"
	"github.com/ogsenpai/mind/pkg/llm"
)

const (
	// DefaultContextWindow is how many retrieved memories feed the prompt.
	DefaultContextWindow = 5

	// interactionImportance is assigned to persisted conversations.
	interactionImportance = 0.7

	source = "rag"
)

// Engine answers free-text input by retrieving relevant memories,
// conditioning a completion on them, and remembering the exchange.
type Engine struct {
	store  *memory.Store
	index  *vector.Index
	events *bus.Bus
	client llm.Client

	model         string
	contextWindow int
	temperature   float32
	maxTokens     int
	timeout       time.Duration
}

type Option func(*Engine)

func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

func WithContextWindow(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextWindow = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(e *Engine) { e.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(e *Engine) { e.maxTokens = n }
}

// WithTimeout caps the completion call. Zero disables the cap.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

func NewEngine(store *memory.Store, index *vector.Index, events *bus.Bus, client llm.Client, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		index:         index,
		events:        events,
		client:        client,
		model:         "deepseek-chat",
		contextWindow: DefaultContextWindow,
		temperature:   0.7,
		maxTokens:     2000,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate produces a response to the input. Nothing is persisted unless
// the completion call succeeds; any failure surfaces as a typed error and
// leaves the knowledge store untouched.
func (e *Engine) Generate(ctx context.Context, input string) (string, error) {
	e.events.Publish(bus.Event{
		Type:   bus.EventMessageReceived,
		Source: source,
		Data:   bus.MessagePayload{Message: input},
	})

	relatedIDs, err := e.index.FindSimilar(ctx, input, e.contextWindow)
	if err != nil {
		return "", fmt.Errorf("retrieve similar memories: %w", err)
	}

	// Stale vector references are tolerated: an evicted memory simply
	// drops out of the context.
	memories := make([]*memory.Entry, 0, len(relatedIDs))
	for _, id := range relatedIDs {
		ent, err := e.store.Retrieve(id)
		if errors.Is(err, memory.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve memory %s: %w", id, err)
		}
		memories = append(memories, ent)
	}
	sortByRelevance(memories)

	prompt, err := renderPrompt(input, memories)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	completionCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		completionCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := llm.Complete(completionCtx, e.client, llm.Request{
		Prompt:      prompt,
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	})
	if err != nil {
		xlog.Error("Completion failed", "model", e.model, "error", err)
		return "", err
	}

	e.storeInteraction(ctx, input, resp.Text, memories)

	e.events.Publish(bus.Event{
		Type:   bus.EventResponseGenerated,
		Source: source,
		Data: bus.MessagePayload{
			Message: resp.Text,
			Metadata: map[string]any{
				"total_tokens":     resp.Usage.TotalTokens,
				"related_memories": len(memories),
			},
		},
	})

	return resp.Text, nil
}

// storeInteraction persists the exchange as a conversation memory and
// indexes it. Indexing failure is degraded, not fatal: the entry stays and
// the response is still returned.
func (e *Engine) storeInteraction(ctx context.Context, input, response string, related []*memory.Entry) {
	relatedIDs := make([]string, 0, len(related))
	for _, m := range related {
		relatedIDs = append(relatedIDs, m.ID)
	}

	id := e.store.Store(memory.KindConversation, memory.Interaction{
		Input:            input,
		Response:         response,
		RelatedMemoryIDs: relatedIDs,
	}, memory.Metadata{
		Source:       source,
		Importance:   interactionImportance,
		Context:      "conversation",
		Associations: []string{"interaction", "dialogue"},
	})

	if ent, err := e.store.Peek(id); err == nil {
		if _, err := e.index.Add(ctx, ent); err != nil {
			xlog.Warn("Interaction stored but not indexed", "id", id, "error", err)
		}
	}

	e.events.Publish(bus.Event{
		Type:   bus.EventMemoryUpdated,
		Source: source,
		Data:   bus.MessagePayload{Message: id},
	})
}

// sortByRelevance orders memories by importance, most recent first within
// equal importance. Same rule the knowledge store uses for queries.
func sortByRelevance(memories []*memory.Entry) {
	sort.Slice(memories, func(i, j int) bool {
		a, b := memories[i], memories[j]
		if a.Metadata.Importance != b.Metadata.Importance {
			return a.Metadata.Importance > b.Metadata.Importance
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
