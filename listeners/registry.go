// Package listeners routes gateway participation events (reactions and
// component clicks) to the campaign listeners attached to a message.
package listeners

import (
	"context"
	"sync"
	"sync/atomic"

	"herald/models"

	log "github.com/sirupsen/logrus"
)

// Kind is the gateway event family a listener is interested in
type Kind string

const (
	KindReaction  Kind = "reaction"
	KindComponent Kind = "component"
)

// Event is a single participation event delivered by the gateway
type Event struct {
	Kind          Kind
	ChannelID     int64
	MessageID     int64
	ActorID       int64
	Automated     bool
	Discriminator string
	// Added is false for reaction removals
	Added bool
	// Reply answers the actor privately; only set for component events
	Reply func(ctx context.Context, content string) error
}

// Key returns the message key the event targets
func (e Event) Key() models.MessageKey {
	return models.MessageKey{ChannelID: e.ChannelID, MessageID: e.MessageID}
}

// Filter decides whether a listener receives an event
type Filter func(Event) bool

// Handler is a listener callback
type Handler func(ctx context.Context, ev Event)

// Handle identifies an attached listener. The zero Handle is never issued.
type Handle struct {
	id uint64
}

// Valid reports whether the handle was issued by a registry
func (h Handle) Valid() bool {
	return h.id != 0
}

// AttachOption customizes an attached listener
type AttachOption func(*listener)

// SerializePerActor lets callbacks for different actors of one listener run
// concurrently. Callbacks for the same actor still never overlap.
func SerializePerActor() AttachOption {
	return func(l *listener) {
		l.actors = make(map[int64]*actorLock)
	}
}

type actorLock struct {
	mu   sync.Mutex
	refs int
}

type listener struct {
	id       uint64
	key      models.MessageKey
	filter   Filter
	onAdd    Handler
	onRemove Handler

	// mu serializes callbacks of this listener, or guards actors when set
	mu       sync.Mutex
	actors   map[int64]*actorLock
	detached atomic.Bool
}

// lock blocks until the listener, or only the actor's slot of it, is free
func (l *listener) lock(actorID int64) func() {
	if l.actors == nil {
		l.mu.Lock()
		return l.mu.Unlock
	}

	l.mu.Lock()
	a, ok := l.actors[actorID]
	if !ok {
		a = &actorLock{}
		l.actors[actorID] = a
	}
	a.refs++
	l.mu.Unlock()

	a.mu.Lock()

	return func() {
		a.mu.Unlock()

		l.mu.Lock()
		a.refs--
		if a.refs == 0 {
			delete(l.actors, actorID)
		}
		l.mu.Unlock()
	}
}

func (l *listener) invoke(ctx context.Context, ev Event) {
	unlock := l.lock(ev.ActorID)
	defer unlock()

	if l.detached.Load() {
		return
	}

	handler := l.onAdd
	if !ev.Added {
		handler = l.onRemove
	}
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"channelID": ev.ChannelID,
				"messageID": ev.MessageID,
				"actorID":   ev.ActorID,
				"panic":     r,
			}).Error("Listener callback panicked")
		}
	}()

	handler(ctx, ev)
}

// Registry owns every attached listener, indexed by message
type Registry struct {
	mu        sync.RWMutex
	byMessage map[models.MessageKey][]*listener
	byID      map[uint64]*listener
	nextID    uint64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byMessage: make(map[models.MessageKey][]*listener),
		byID:      make(map[uint64]*listener),
	}
}

// Attach registers a listener on a message and returns its handle.
// A nil filter accepts every event.
func (r *Registry) Attach(key models.MessageKey, filter Filter, onAdd, onRemove Handler, opts ...AttachOption) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	l := &listener{
		id:       r.nextID,
		key:      key,
		filter:   filter,
		onAdd:    onAdd,
		onRemove: onRemove,
	}
	for _, opt := range opts {
		opt(l)
	}
	r.byID[l.id] = l
	r.byMessage[key] = append(r.byMessage[key], l)

	log.WithFields(log.Fields{
		"channelID":  key.ChannelID,
		"messageID":  key.MessageID,
		"listenerID": l.id,
	}).Debug("Listener attached")

	return Handle{id: l.id}
}

// Detach removes a listener. Detaching is terminal: callbacks that have not
// started yet will not run. Returns false for unknown or already detached handles.
func (r *Registry) Detach(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[h.id]
	if !ok {
		return false
	}
	r.removeLocked(l)
	return true
}

// DetachMessage removes every listener on a message and returns how many were removed
func (r *Registry) DetachMessage(key models.MessageKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	attached := r.byMessage[key]
	for _, l := range append([]*listener(nil), attached...) {
		r.removeLocked(l)
	}
	return len(attached)
}

func (r *Registry) removeLocked(l *listener) {
	l.detached.Store(true)
	delete(r.byID, l.id)

	remaining := r.byMessage[l.key][:0]
	for _, other := range r.byMessage[l.key] {
		if other.id != l.id {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 0 {
		delete(r.byMessage, l.key)
	} else {
		r.byMessage[l.key] = remaining
	}

	log.WithFields(log.Fields{
		"channelID":  l.key.ChannelID,
		"messageID":  l.key.MessageID,
		"listenerID": l.id,
	}).Debug("Listener detached")
}

// Dispatch delivers an event to every matching listener on its message and
// waits for them to finish. Different listeners run concurrently; callbacks of
// one listener never overlap unless it was attached with SerializePerActor.
// Returns the number of listeners that matched.
func (r *Registry) Dispatch(ctx context.Context, ev Event) int {
	r.mu.RLock()
	candidates := append([]*listener(nil), r.byMessage[ev.Key()]...)
	r.mu.RUnlock()

	var wg sync.WaitGroup
	matched := 0
	for _, l := range candidates {
		if l.filter != nil && !l.filter(ev) {
			continue
		}
		matched++
		wg.Add(1)
		go func(l *listener) {
			defer wg.Done()
			l.invoke(ctx, ev)
		}(l)
	}
	wg.Wait()

	return matched
}

// Count returns the number of attached listeners
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Attached reports whether a handle is still attached
func (r *Registry) Attached(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[h.id]
	return ok
}
