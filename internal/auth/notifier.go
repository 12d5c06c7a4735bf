package auth

import "sync"

// Listener receives auth events.
type Listener func(Event)

// Notifier is an ordered listener registry. Listeners run synchronously on the
// publishing goroutine, in subscription order, outside the registry lock.
type Notifier struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []entry
}

type entry struct {
	id uint64
	fn Listener
}

// NewNotifier creates an empty registry.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn and returns a handle that removes it.
func (n *Notifier) Subscribe(fn Listener) *Subscription {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, entry{id: id, fn: fn})
	n.mu.Unlock()

	return &Subscription{notifier: n, id: id}
}

// Publish delivers ev to every current listener.
func (n *Notifier) Publish(ev Event) {
	n.mu.Lock()
	snapshot := make([]Listener, len(n.listeners))
	for i, e := range n.listeners {
		snapshot[i] = e.fn
	}
	n.mu.Unlock()

	for _, fn := range snapshot {
		fn(ev)
	}
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, e := range n.listeners {
		if e.id == id {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	notifier *Notifier
	id       uint64
	once     sync.Once
}

// Unsubscribe removes the listener. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.notifier.remove(s.id)
	})
}
