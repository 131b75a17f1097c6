package coordinator_test

import (
	"time"

	"github.com/ogsenpai/mind/core/bus"
	. "github.com/ogsenpai/mind/core/coordinator"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Coordinator", func() {
	var (
		events *bus.Bus
		coord  *Coordinator
	)

	BeforeEach(func() {
		events = bus.New()
		coord = New(events)
	})

	AfterEach(func() {
		coord.Close()
	})

	busyEvent := func(id string) bus.Event {
		return bus.Event{
			Type:   bus.EventAgentBusy,
			Source: "test",
			Data:   bus.AgentPayload{AgentID: id, Status: "busy"},
		}
	}

	Context("registration", func() {
		It("starts agents idle and announces them", func() {
			id := coord.RegisterAgent("researcher", []string{"search"})
			Expect(id).ToNot(BeEmpty())

			agents := coord.Agents()
			Expect(agents).To(HaveLen(1))
			Expect(agents[0].Status).To(Equal(StatusIdle))
			Expect(agents[0].LastActiveAt).ToNot(BeZero())

			announced := events.History(bus.HistoryFilter{EventType: bus.EventAgentInitialized})
			Expect(announced).To(HaveLen(1))
			payload, ok := announced[0].Data.(bus.AgentPayload)
			Expect(ok).To(BeTrue())
			Expect(payload.AgentID).To(Equal(id))
			Expect(payload.Name).To(Equal("researcher"))
		})

		It("removes agents", func() {
			id := coord.RegisterAgent("tmp", nil)
			Expect(coord.RemoveAgent(id)).To(BeTrue())
			Expect(coord.RemoveAgent(id)).To(BeFalse())
			Expect(coord.Agents()).To(BeEmpty())
		})
	})

	Context("status transitions", func() {
		It("follows agent events on the bus", func() {
			clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			coord.Close()
			coord = New(events, WithClock(func() time.Time {
				clock = clock.Add(time.Minute)
				return clock
			}))

			id := coord.RegisterAgent("worker", nil)
			registeredAt := coord.Agents()[0].LastActiveAt

			events.Publish(busyEvent(id))
			busy := coord.Agents()[0]
			Expect(busy.Status).To(Equal(StatusBusy))
			Expect(busy.LastActiveAt.After(registeredAt)).To(BeTrue())

			events.Publish(bus.Event{
				Type: bus.EventAgentError,
				Data: bus.AgentPayload{AgentID: id, Status: "error"},
			})
			Expect(coord.Agents()[0].Status).To(Equal(StatusError))

			events.Publish(bus.Event{
				Type: bus.EventAgentReady,
				Data: bus.AgentPayload{AgentID: id, Status: "idle"},
			})
			Expect(coord.Agents()[0].Status).To(Equal(StatusIdle))
		})

		It("ignores events for unknown agents", func() {
			coord.RegisterAgent("worker", nil)
			events.Publish(busyEvent("unknown"))
			Expect(coord.Agents()[0].Status).To(Equal(StatusIdle))
		})
	})

	Context("finding available agents", func() {
		It("requires idle status and a capability superset", func() {
			coord.RegisterAgent("full", []string{"search", "summarize", "translate"})
			coord.RegisterAgent("partial", []string{"search"})
			busyID := coord.RegisterAgent("busy-full", []string{"search", "summarize"})
			events.Publish(busyEvent(busyID))

			available := coord.FindAvailable([]string{"search", "summarize"})
			Expect(available).To(HaveLen(1))
			Expect(available[0].Name).To(Equal("full"))
		})

		It("matches every idle agent when nothing is required", func() {
			coord.RegisterAgent("a", nil)
			coord.RegisterAgent("b", []string{"x"})
			Expect(coord.FindAvailable(nil)).To(HaveLen(2))
		})
	})

	Context("capacity gate", func() {
		It("accepts tasks while below the maximum", func() {
			ids := []string{
				coord.RegisterAgent("w1", nil),
				coord.RegisterAgent("w2", nil),
				coord.RegisterAgent("w3", nil),
			}

			Expect(coord.CanAcceptMoreTasks()).To(BeTrue())

			for _, id := range ids {
				events.Publish(busyEvent(id))
			}
			Expect(coord.BusyCount()).To(Equal(3))
			Expect(coord.CanAcceptMoreTasks()).To(BeFalse())
		})

		It("honors an adjusted maximum", func() {
			id := coord.RegisterAgent("w1", nil)
			events.Publish(busyEvent(id))

			coord.SetMaxConcurrentTasks(1)
			Expect(coord.CanAcceptMoreTasks()).To(BeFalse())

			coord.SetMaxConcurrentTasks(2)
			Expect(coord.CanAcceptMoreTasks()).To(BeTrue())
		})
	})

	It("stops following events after Close", func() {
		id := coord.RegisterAgent("worker", nil)
		coord.Close()

		events.Publish(busyEvent(id))
		Expect(coord.Agents()[0].Status).To(Equal(StatusIdle))
	})
})
