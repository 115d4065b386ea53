package agent

import (
	"sync"

	"droidrun/internal/agent/ports"
)

// eventStream is an unbounded FIFO between the run's producers and a single
// consumer goroutine. Producers never block; the consumer drains in order.
type eventStream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []ports.AgentEvent
	closed bool
	done   chan struct{}
}

func newEventStream(consume func(ports.AgentEvent)) *eventStream {
	s := &eventStream{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.drain(consume)
	return s
}

// Push enqueues an event. Pushes after Close are dropped.
func (s *eventStream) Push(event ports.AgentEvent) {
	if event == nil {
		return
	}
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, event)
	}
	s.mu.Unlock()
	s.cond.Signal()
}

// Close stops accepting events and blocks until everything already queued
// has been consumed.
func (s *eventStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Signal()
	<-s.done
}

func (s *eventStream) drain(consume func(ports.AgentEvent)) {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		consume(event)
	}
}
