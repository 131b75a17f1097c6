package memory_test

import (
	"fmt"
	"time"

	. "github.com/ogsenpai/mind/core/memory"
	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func ptr(f float64) *float64 { return &f }

var _ = ginkgo.Describe("Store", func() {
	var store *Store

	ginkgo.BeforeEach(func() {
		store = NewStore()
	})

	ginkgo.Context("storing entries", func() {
		ginkgo.It("assigns an id and applies defaults", func() {
			id := store.Store(KindConversation, Text("hello"), Metadata{})
			Expect(id).ToNot(BeEmpty())

			ent, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(ent.Metadata.Importance).To(Equal(0.5))
			Expect(ent.Metadata.Source).To(Equal("system"))
			Expect(ent.Metadata.AccessCount).To(Equal(0))
			Expect(ent.CreatedAt).ToNot(BeZero())
		})

		ginkgo.It("keeps explicit metadata", func() {
			id := store.Store(KindKnowledge, Text("fact"), Metadata{
				Source:       "loader",
				Importance:   0.9,
				Context:      "go",
				Associations: []string{"knowledge"},
			})
			ent, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(ent.Metadata.Source).To(Equal("loader"))
			Expect(ent.Metadata.Importance).To(Equal(0.9))
			Expect(ent.Metadata.Context).To(Equal("go"))
		})
	})

	ginkgo.Context("retrieving entries", func() {
		ginkgo.It("bumps access bookkeeping on Retrieve", func() {
			id := store.Store(KindContext, Text("x"), Metadata{})

			first, err := store.Retrieve(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(first.Metadata.AccessCount).To(Equal(1))

			second, err := store.Retrieve(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(second.Metadata.AccessCount).To(Equal(2))
		})

		ginkgo.It("leaves bookkeeping alone on Peek", func() {
			id := store.Store(KindContext, Text("x"), Metadata{})

			_, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())

			ent, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(ent.Metadata.AccessCount).To(Equal(0))
		})

		ginkgo.It("returns ErrNotFound for unknown ids", func() {
			_, err := store.Retrieve("nope")
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("returns copies whose associations cannot write through", func() {
			id := store.Store(KindContext, Text("x"), Metadata{Associations: []string{"original"}})

			for _, ent := range []*Entry{
				func() *Entry { e, _ := store.Retrieve(id); return e }(),
				func() *Entry { e, _ := store.Peek(id); return e }(),
				store.Query(Query{Kind: KindContext})[0],
			} {
				Expect(ent.Metadata.Associations).To(HaveLen(1))
				ent.Metadata.Associations[0] = "mutated"
			}

			kept, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(kept.Metadata.Associations).To(Equal([]string{"original"}))
		})
	})

	ginkgo.Context("querying", func() {
		var clock time.Time

		ginkgo.BeforeEach(func() {
			clock = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			store = NewStore(WithClock(func() time.Time {
				clock = clock.Add(time.Second)
				return clock
			}))
		})

		ginkgo.It("orders by importance, then recency", func() {
			low := store.Store(KindKnowledge, Text("low"), Metadata{Importance: 0.2})
			older := store.Store(KindKnowledge, Text("older high"), Metadata{Importance: 0.9})
			newer := store.Store(KindKnowledge, Text("newer high"), Metadata{Importance: 0.9})

			results := store.Query(Query{Kind: KindKnowledge})
			Expect(results).To(HaveLen(3))
			Expect(results[0].ID).To(Equal(newer))
			Expect(results[1].ID).To(Equal(older))
			Expect(results[2].ID).To(Equal(low))
		})

		ginkgo.It("filters by kind, importance range and context", func() {
			store.Store(KindKnowledge, Text("a"), Metadata{Importance: 0.9, Context: "go"})
			store.Store(KindKnowledge, Text("b"), Metadata{Importance: 0.3, Context: "go"})
			store.Store(KindTask, Text("c"), Metadata{Importance: 0.9, Context: "go"})

			results := store.Query(Query{
				Kind:          KindKnowledge,
				MinImportance: ptr(0.5),
				Context:       "go",
			})
			Expect(results).To(HaveLen(1))
			Expect(results[0].Content.Text()).To(Equal("a"))
		})

		ginkgo.It("filters by association membership", func() {
			store.Store(KindConversation, Text("a"), Metadata{Associations: []string{"dialogue"}})
			store.Store(KindConversation, Text("b"), Metadata{Associations: []string{"other"}})

			results := store.Query(Query{Associations: []string{"dialogue"}})
			Expect(results).To(HaveLen(1))
		})

		ginkgo.It("filters by creation time range", func() {
			store.Store(KindContext, Text("early"), Metadata{})
			cutoff := clock
			store.Store(KindContext, Text("late"), Metadata{})

			results := store.Query(Query{Start: cutoff.Add(time.Millisecond)})
			Expect(results).To(HaveLen(1))
			Expect(results[0].Content.Text()).To(Equal("late"))
		})

		ginkgo.It("applies the limit after sorting", func() {
			store.Store(KindContext, Text("l"), Metadata{Importance: 0.1})
			store.Store(KindContext, Text("h"), Metadata{Importance: 0.9})

			results := store.Query(Query{Limit: 1})
			Expect(results).To(HaveLen(1))
			Expect(results[0].Content.Text()).To(Equal("h"))
		})
	})

	ginkgo.Context("updating and removing", func() {
		ginkgo.It("merges a patch without touching unset fields", func() {
			id := store.Store(KindGoal, Text("old"), Metadata{Importance: 0.6, Context: "c"})

			ok := store.Update(id, Patch{Content: Text("new"), Importance: ptr(0.8)})
			Expect(ok).To(BeTrue())

			ent, err := store.Peek(id)
			Expect(err).ToNot(HaveOccurred())
			Expect(ent.Content.Text()).To(Equal("new"))
			Expect(ent.Metadata.Importance).To(Equal(0.8))
			Expect(ent.Metadata.Context).To(Equal("c"))
		})

		ginkgo.It("reports unknown ids", func() {
			Expect(store.Update("nope", Patch{})).To(BeFalse())
			Expect(store.Remove("nope")).To(BeFalse())
		})

		ginkgo.It("removes entries", func() {
			id := store.Store(KindPlan, Text("x"), Metadata{})
			Expect(store.Remove(id)).To(BeTrue())
			_, err := store.Peek(id)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	ginkgo.Context("eviction", func() {
		ginkgo.It("drops the least important entries once over the cap", func() {
			store = NewStore(WithMaxEntries(3))

			store.Store(KindKnowledge, Text("keep1"), Metadata{Importance: 0.9})
			store.Store(KindKnowledge, Text("keep2"), Metadata{Importance: 0.8})
			victim := store.Store(KindKnowledge, Text("victim"), Metadata{Importance: 0.1})
			store.Store(KindKnowledge, Text("keep3"), Metadata{Importance: 0.7})

			Expect(store.Count()).To(Equal(3))
			_, err := store.Peek(victim)
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("evicts exactly the least important entry at full default capacity", func() {
			store = NewStore()

			var first string
			for i := 1; i <= DefaultMaxEntries+1; i++ {
				id := store.Store(KindKnowledge, Text(fmt.Sprintf("entry %d", i)), Metadata{
					Importance: float64(i) / float64(DefaultMaxEntries+1),
				})
				if i == 1 {
					first = id
				}
			}

			Expect(store.Stats().TotalEntries).To(Equal(DefaultMaxEntries))
			_, err := store.Peek(first)
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("keeps the store at the cap under sustained writes", func() {
			store = NewStore(WithMaxEntries(10))
			for i := 0; i < 25; i++ {
				store.Store(KindContext, Text(fmt.Sprintf("entry %d", i)), Metadata{
					Importance: float64(i%10) / 10,
				})
			}
			Expect(store.Count()).To(Equal(10))
		})
	})

	ginkgo.Context("stats", func() {
		ginkgo.It("summarizes the contents", func() {
			store.Store(KindKnowledge, Text("a"), Metadata{Importance: 0.4})
			store.Store(KindKnowledge, Text("b"), Metadata{Importance: 0.6})
			store.Store(KindTask, TaskRecord{Status: TaskCompleted}, Metadata{Importance: 0.5})

			stats := store.Stats()
			Expect(stats.TotalEntries).To(Equal(3))
			Expect(stats.EntriesByKind[KindKnowledge]).To(Equal(2))
			Expect(stats.EntriesByKind[KindTask]).To(Equal(1))
			Expect(stats.AverageImportance).To(BeNumerically("~", 0.5, 0.001))
			Expect(stats.OldestEntry).ToNot(BeZero())
		})

		ginkgo.It("is empty for an empty store", func() {
			stats := store.Stats()
			Expect(stats.TotalEntries).To(Equal(0))
			Expect(stats.OldestEntry).To(BeZero())
		})
	})
})
