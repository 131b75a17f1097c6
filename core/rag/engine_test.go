package rag_test

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ogsenpai/mind/core/bus"
	"github.com/ogsenpai/mind/core/memory"
	. "github.com/ogsenpai/mind/core/rag"
	"github.com/ogsenpai/mind/core/vector"
	"github.com/ogsenpai/mind/pkg/llm"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func answering(text string) *llm.MockClient {
	return &llm.MockClient{
		CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{
				ID:      "cmpl-1",
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: text}}},
				Usage:   openai.Usage{TotalTokens: 7},
			}, nil
		},
	}
}

var _ = Describe("Engine", func() {
	var (
		store  *memory.Store
		index  *vector.Index
		events *bus.Bus
	)

	BeforeEach(func() {
		store = memory.NewStore()
		index = vector.NewIndex(vector.NewTokenEmbedder(vector.DefaultDimension))
		events = bus.New()
	})

	It("returns the generated response", func() {
		engine := NewEngine(store, index, events, answering("hello back"))

		response, err := engine.Generate(context.Background(), "hello")
		Expect(err).ToNot(HaveOccurred())
		Expect(response).To(Equal("hello back"))
	})

	It("persists the interaction after a successful completion", func() {
		engine := NewEngine(store, index, events, answering("noted"))

		_, err := engine.Generate(context.Background(), "remember this")
		Expect(err).ToNot(HaveOccurred())

		conversations := store.Query(memory.Query{Kind: memory.KindConversation})
		Expect(conversations).To(HaveLen(1))
		Expect(conversations[0].Metadata.Importance).To(Equal(0.7))
		Expect(conversations[0].Metadata.Context).To(Equal("conversation"))

		interaction, ok := conversations[0].Content.(memory.Interaction)
		Expect(ok).To(BeTrue())
		Expect(interaction.Input).To(Equal("remember this"))
		Expect(interaction.Response).To(Equal("noted"))

		Expect(index.Len()).To(Equal(1))
	})

	It("persists nothing when the completion fails", func() {
		client := &llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				return openai.ChatCompletionResponse{}, errors.New("backend down")
			},
		}
		engine := NewEngine(store, index, events, client)

		_, err := engine.Generate(context.Background(), "hello")
		Expect(err).To(HaveOccurred())
		var cerr *llm.CompletionError
		Expect(errors.As(err, &cerr)).To(BeTrue())

		Expect(store.Count()).To(BeZero())
		Expect(index.Len()).To(BeZero())
	})

	It("includes retrieved memories in the prompt", func() {
		id := store.Store(memory.KindKnowledge, memory.Text("the capital of France is Paris"), memory.Metadata{Importance: 0.8})
		ent, err := store.Peek(id)
		Expect(err).ToNot(HaveOccurred())
		_, err = index.Add(context.Background(), ent)
		Expect(err).ToNot(HaveOccurred())

		var prompt string
		client := &llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				prompt = req.Messages[len(req.Messages)-1].Content
				return openai.ChatCompletionResponse{
					ID:      "cmpl-1",
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Paris"}}},
				}, nil
			},
		}
		engine := NewEngine(store, index, events, client)

		_, err = engine.Generate(context.Background(), "what is the capital of France")
		Expect(err).ToNot(HaveOccurred())
		Expect(prompt).To(ContainSubstring("the capital of France is Paris"))
		Expect(prompt).To(ContainSubstring("what is the capital of France"))
	})

	It("records related memory ids on the stored interaction", func() {
		id := store.Store(memory.KindKnowledge, memory.Text("go routines are lightweight threads"), memory.Metadata{Importance: 0.8})
		ent, err := store.Peek(id)
		Expect(err).ToNot(HaveOccurred())
		_, err = index.Add(context.Background(), ent)
		Expect(err).ToNot(HaveOccurred())

		engine := NewEngine(store, index, events, answering("they are"))
		_, err = engine.Generate(context.Background(), "tell me about go routines")
		Expect(err).ToNot(HaveOccurred())

		conversations := store.Query(memory.Query{Kind: memory.KindConversation})
		Expect(conversations).To(HaveLen(1))
		interaction := conversations[0].Content.(memory.Interaction)
		Expect(interaction.RelatedMemoryIDs).To(ContainElement(id))
	})

	It("tolerates stale vector references", func() {
		id := store.Store(memory.KindKnowledge, memory.Text("soon to vanish"), memory.Metadata{})
		ent, err := store.Peek(id)
		Expect(err).ToNot(HaveOccurred())
		_, err = index.Add(context.Background(), ent)
		Expect(err).ToNot(HaveOccurred())
		Expect(store.Remove(id)).To(BeTrue())

		engine := NewEngine(store, index, events, answering("fine"))
		response, err := engine.Generate(context.Background(), "anything")
		Expect(err).ToNot(HaveOccurred())
		Expect(response).To(Equal("fine"))
	})

	It("publishes the conversation events", func() {
		engine := NewEngine(store, index, events, answering("done"))

		_, err := engine.Generate(context.Background(), "ping")
		Expect(err).ToNot(HaveOccurred())

		received := events.History(bus.HistoryFilter{EventType: bus.EventMessageReceived})
		Expect(received).To(HaveLen(1))

		generated := events.History(bus.HistoryFilter{EventType: bus.EventResponseGenerated})
		Expect(generated).To(HaveLen(1))
		payload, ok := generated[0].Data.(bus.MessagePayload)
		Expect(ok).To(BeTrue())
		Expect(payload.Message).To(Equal("done"))

		updated := events.History(bus.HistoryFilter{EventType: bus.EventMemoryUpdated})
		Expect(updated).To(HaveLen(1))
	})

	It("honors the configured model and sampling options", func() {
		var captured openai.ChatCompletionRequest
		client := &llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				captured = req
				return openai.ChatCompletionResponse{
					ID:      "cmpl-1",
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
				}, nil
			},
		}
		engine := NewEngine(store, index, events, client,
			WithModel("custom-model"),
			WithTemperature(0.2),
			WithMaxTokens(128),
		)

		_, err := engine.Generate(context.Background(), "hi")
		Expect(err).ToNot(HaveOccurred())
		Expect(captured.Model).To(Equal("custom-model"))
		Expect(captured.Temperature).To(BeNumerically("~", 0.2, 0.001))
		Expect(captured.MaxTokens).To(Equal(128))
	})

	It("limits the context window", func() {
		ctx := context.Background()
		for i := 0; i < 8; i++ {
			id := store.Store(memory.KindKnowledge, memory.Text("shared topic fact number "+strings.Repeat("x", i+1)), memory.Metadata{})
			ent, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			_, err = index.Add(ctx, ent)
			Expect(err).ToNot(HaveOccurred())
		}

		var prompt string
		client := &llm.MockClient{
			CreateChatCompletionFunc: func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
				prompt = req.Messages[len(req.Messages)-1].Content
				return openai.ChatCompletionResponse{
					ID:      "cmpl-1",
					Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
				}, nil
			},
		}
		engine := NewEngine(store, index, events, client, WithContextWindow(2))

		_, err := engine.Generate(ctx, "shared topic")
		Expect(err).ToNot(HaveOccurred())
		Expect(strings.Count(prompt, "shared topic fact number")).To(Equal(2))
	})
})
