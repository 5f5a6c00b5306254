package access

import (
	"log/slog"
	"sync"
)

// Notifier receives the owner's username after every successful mutation of
// their permission state.
type Notifier interface {
	PermissionsChanged(username string)
}

// ChangeNotifier fans permission-change events out to subscribers, keyed by
// the affected username. Delivery is best-effort and at-least-once: a
// subscriber that cannot keep up misses events rather than blocking the
// mutation path, and duplicates must be treated as no-ops.
type ChangeNotifier struct {
	mu     sync.RWMutex
	subs   map[uint64]chan string
	nextID uint64
}

func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{
		subs: make(map[uint64]chan string),
	}
}

// Subscribe registers a new subscriber with the given channel buffer and
// returns the event channel plus a cancel func. Cancelling closes the
// channel and stops delivery.
func (n *ChangeNotifier) Subscribe(buffer int) (<-chan string, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan string, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if sub, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// PermissionsChanged delivers an invalidation event to every subscriber
// without blocking.
func (n *ChangeNotifier) PermissionsChanged(username string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subs {
		select {
		case ch <- username:
		default:
			slog.Debug("change notifier dropped event", "user", username)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (n *ChangeNotifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

var _ Notifier = (*ChangeNotifier)(nil)
