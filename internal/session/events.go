package session

import (
	"slices"
	"sync"
)

// EventKind identifies a wallet-side notification.
type EventKind int

const (
	// AccountsChanged carries the new list of accounts; the first one is
	// the acting account. An empty list means disconnected.
	AccountsChanged EventKind = iota + 1
	// ChainChanged means the network switched and all state is stale.
	ChainChanged
)

func (k EventKind) String() string {
	switch k {
	case AccountsChanged:
		return "accounts_changed"
	case ChainChanged:
		return "chain_changed"
	default:
		return "unknown"
	}
}

// Event is a notification delivered to a Session.
type Event struct {
	Kind     EventKind
	Accounts []string
}

// Notifier delivers events to subscribers until the returned function is
// called.
type Notifier interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Events is an in-process Notifier.
type Events struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewEvents returns an Events with no subscribers.
func NewEvents() *Events {
	return &Events{subs: map[int]func(Event){}}
}

// Subscribe registers fn.
func (e *Events) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Publish delivers ev to every subscriber, in subscription order.
func (e *Events) Publish(ev Event) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	fns := make(map[int]func(Event), len(e.subs))
	for id, fn := range e.subs {
		fns[id] = fn
	}
	e.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		fns[id](ev)
	}
}
