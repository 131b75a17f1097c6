package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mudler/xlog"
	"github.com/valyala/fasthttp"

	"github.com/ogsenpai/mind/core/bus"
)

const (
	clientBuffer  = 50
	defaultReplay = 10
)

// Stream mirrors the event bus to connected SSE clients. Every published
// event is forwarded as an SSE message whose event name is the bus event
// type and whose data is the JSON-encoded event.
type Stream struct {
	clients       sync.Map // client id -> chan string
	events        *bus.Bus
	subscriptions []string
	replay        int
}

type Option func(*Stream)

// WithReplay sets how many recent events a new client receives on connect.
func WithReplay(n int) Option {
	return func(s *Stream) {
		if n >= 0 {
			s.replay = n
		}
	}
}

// New builds a stream subscribed to every event type on the bus.
func New(events *bus.Bus, opts ...Option) *Stream {
	s := &Stream{
		events: events,
		replay: defaultReplay,
	}
	for _, o := range opts {
		o(s)
	}

	for _, t := range bus.AllEventTypes {
		s.subscriptions = append(s.subscriptions, events.Subscribe(t, s.forward))
	}
	return s
}

// forward fans an event out to every connected client. A client whose
// buffer is full misses the event rather than stalling the publisher.
func (s *Stream) forward(e bus.Event) {
	msg, err := format(e)
	if err != nil {
		xlog.Warn("Dropping unencodable event", "type", e.Type, "error", err)
		return
	}
	s.clients.Range(func(_, value any) bool {
		ch, ok := value.(chan string)
		if !ok {
			return true
		}
		select {
		case ch <- msg:
		default:
		}
		return true
	})
}

func format(e bus.Event) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, data), nil
}

// Handle upgrades the request to an event stream and serves it until the
// client disconnects.
func (s *Stream) Handle(c *fiber.Ctx) error {
	id := uuid.New().String()
	ch := make(chan string, clientBuffer)
	s.clients.Store(id, ch)

	ctx := c.Context()
	ctx.SetContentType("text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	backlog := s.events.History(bus.HistoryFilter{Limit: s.replay})

	// Cleanup may be reached from the disconnect goroutine or from the
	// stream writer, whichever notices first.
	done := make(chan struct{})
	var cleanup sync.Once
	teardown := func() {
		cleanup.Do(func() {
			s.clients.Delete(id)
			close(ch)
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			teardown()
		case <-done:
		}
	}()

	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer teardown()

		fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		w.Flush()

		for _, e := range backlog {
			msg, err := format(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
		}
		w.Flush()

		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				w.Flush()
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}))

	return nil
}

// Clients lists the ids of connected clients.
func (s *Stream) Clients() []string {
	var ids []string
	s.clients.Range(func(key, _ any) bool {
		if id, ok := key.(string); ok {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Close detaches the stream from the bus.
func (s *Stream) Close() {
	for _, id := range s.subscriptions {
		s.events.Unsubscribe(id)
	}
}
