package placement

import "sync"

// Event is one instance lifecycle transition, broadcast to operators
// streaming a workload's activity (spec.md §4.6 "Instance lifecycle").
type Event struct {
	WorkloadID string
	InstanceID string
	NodeID     string
	Status     InstanceStatus
}

// eventHub fans Events out to any number of subscribed channels, dropping a
// slow subscriber's event rather than blocking the publisher.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan Event]string // chan -> workloadID filter ("" = all)
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan Event]string)}
}

func (h *eventHub) subscribe(workloadID string) chan Event {
	ch := make(chan Event, 32)
	h.mu.Lock()
	h.subs[ch] = workloadID
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, filter := range h.subs {
		if filter != "" && filter != e.WorkloadID {
			continue
		}
		select {
		case ch <- e:
		default:
		}
	}
}
