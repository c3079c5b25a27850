// Package authstate fans auth-state changes out to the connections observing a session.
package authstate

import (
	"context"
	"sync"

	"github.com/and161185/pto-keeper/internal/model"
)

// Publisher announces a new auth state for a session id.
type Publisher interface {
	Publish(ctx context.Context, sid string, st model.AuthState) error
}

// Hub is an in-process registry of auth-state subscribers keyed by session id.
// Every subscriber receives every state published for its session, in order.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// subscriber queues states until its forwarding goroutine hands them to out.
type subscriber struct {
	mu    sync.Mutex
	queue []model.AuthState
	wake  chan struct{}
	done  chan struct{}
	out   chan model.AuthState
}

func (s *subscriber) push(st model.AuthState) {
	s.mu.Lock()
	s.queue = append(s.queue, st)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) take() []model.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

func (s *subscriber) forward() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for _, st := range s.take() {
			select {
			case s.out <- st:
			case <-s.done:
				return
			}
		}
	}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers for changes of sid. cancel unregisters and closes the channel;
// it is safe to call more than once.
func (h *Hub) Subscribe(sid string) (<-chan model.AuthState, func()) {
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan model.AuthState),
	}
	h.mu.Lock()
	set, ok := h.subs[sid]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[sid] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	go sub.forward()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[sid], sub)
			if len(h.subs[sid]) == 0 {
				delete(h.subs, sid)
			}
			h.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish delivers st to the local subscribers of sid.
func (h *Hub) Publish(_ context.Context, sid string, st model.AuthState) error {
	h.deliver(sid, st)
	return nil
}

// Subscribers reports how many channels observe sid.
func (h *Hub) Subscribers(sid string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sid])
}

func (h *Hub) deliver(sid string, st model.AuthState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sid] {
		sub.push(st)
	}
}
