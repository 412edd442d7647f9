package stream

import "sync"

// notifier fans state-change updates out to subscribers. Sends never
// block: each subscriber channel is buffered and a full channel drops
// the update, since a later update always carries the full snapshot.
type notifier struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan Update
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Update)}
}

func (n *notifier) subscribe() (<-chan Update, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan Update, 64)
	n.subs[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}
}

func (n *notifier) publish(u Update) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
