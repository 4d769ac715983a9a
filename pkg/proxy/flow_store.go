package proxy

import "sync"

// FlowStore is a thread-safe, bounded buffer of recent flows with pub/sub.
// It exists purely for the inspection UIs; capture persistence never reads it.
type FlowStore struct {
	mu          sync.RWMutex
	flows       []*Flow
	index       map[string]*Flow
	capacity    int
	subscribers []chan FlowEvent
}

// NewFlowStore creates a store with the given capacity. Oldest flows are
// evicted when full.
func NewFlowStore(capacity int) *FlowStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &FlowStore{
		index:    make(map[string]*Flow),
		capacity: capacity,
	}
}

// Add stores a new flow and notifies subscribers.
func (s *FlowStore) Add(f *Flow) {
	s.mu.Lock()
	s.flows = append(s.flows, f)
	s.index[f.ID] = f
	if len(s.flows) > s.capacity {
		evicted := s.flows[0]
		delete(s.index, evicted.ID)
		// Reallocate rather than reslice so evicted flows can be collected.
		s.flows = append([]*Flow(nil), s.flows[1:]...)
	}
	subs := s.copySubscribers()
	s.mu.Unlock()

	s.broadcast(subs, FlowEvent{Type: FlowEventNew, Flow: f})
}

// Update notifies subscribers of a change to an existing flow.
func (s *FlowStore) Update(f *Flow, eventType FlowEventType) {
	s.mu.RLock()
	subs := s.copySubscribers()
	s.mu.RUnlock()
	s.broadcast(subs, FlowEvent{Type: eventType, Flow: f})
}

// Get returns the flow with the given ID, or nil if not found.
func (s *FlowStore) Get(id string) *Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index[id]
}

// Recent returns up to n flows in insertion order, newest last.
// n <= 0 returns everything.
func (s *FlowStore) Recent(n int) []*Flow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.flows) {
		n = len(s.flows)
	}
	return append([]*Flow(nil), s.flows[len(s.flows)-n:]...)
}

// Clear removes all flows from the store.
func (s *FlowStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = nil
	s.index = make(map[string]*Flow)
}

// Count returns the number of flows currently held.
func (s *FlowStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flows)
}

// Subscribe returns a channel that receives FlowEvents. The channel is
// buffered; slow consumers will have events dropped.
func (s *FlowStore) Subscribe() chan FlowEvent {
	ch := make(chan FlowEvent, 128)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (s *FlowStore) Unsubscribe(ch chan FlowEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// copySubscribers returns a snapshot of the current subscriber list.
// Must be called with at least a read lock held.
func (s *FlowStore) copySubscribers() []chan FlowEvent {
	cp := make([]chan FlowEvent, len(s.subscribers))
	copy(cp, s.subscribers)
	return cp
}

func (s *FlowStore) broadcast(subs []chan FlowEvent, evt FlowEvent) {
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber; drop the event rather than blocking.
		}
	}
}
